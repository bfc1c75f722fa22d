package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hims-api/internal/models"
)

const enrollmentColumns = `id, client_id, program_id, status, enrollment_date, start_date, end_date, notes, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria, newest first.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY enrollment_date DESC, id DESC LIMIT %d OFFSET %d`, enrollmentColumns, clause, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByClient returns every enrollment of a client, newest first.
func (r *EnrollmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE client_id = $1 ORDER BY enrollment_date DESC, id DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, clientID); err != nil {
		return nil, fmt.Errorf("list client enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsForPair checks whether the client is already enrolled in the program.
func (r *EnrollmentRepository) ExistsForPair(ctx context.Context, clientID, programID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE client_id = $1 AND program_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, clientID, programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment. A concurrent insert for the same
// (client, program) pair surfaces as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, client_id, program_id, status, enrollment_date, start_date, end_date, notes, created_at, updated_at)
        VALUES (:id, :client_id, :program_id, :status, :enrollment_date, :start_date, :end_date, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return translateWriteErr("create enrollment", err)
	}
	return nil
}

// Update writes status and notes, provided the stored status still equals
// expected. It returns sql.ErrNoRows when no row matched.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment, expected models.EnrollmentStatus) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = $2, notes = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, enrollment.ID, enrollment.Status, enrollment.Notes, enrollment.UpdatedAt, expected)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an enrollment and returns the deleted row, or sql.ErrNoRows.
// Only one of several concurrent deletes observes the row.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`DELETE FROM enrollments WHERE id = $1 RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("delete enrollment: %w", err)
	}
	return &enrollment, nil
}

// DeleteByClient removes every enrollment of a client and returns them.
func (r *EnrollmentRepository) DeleteByClient(ctx context.Context, clientID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`DELETE FROM enrollments WHERE client_id = $1 RETURNING %s`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, clientID); err != nil {
		return nil, fmt.Errorf("delete client enrollments: %w", err)
	}
	return enrollments, nil
}
