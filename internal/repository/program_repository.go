package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hims-api/internal/models"
)

const programColumns = `id, name, description, duration, cost, max_participants, current_participants, start_date, end_date, created_at, updated_at`

// ProgramRepository handles persistence of health programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs newest first.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.HealthProgram, int, error) {
	_, size, offset := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM health_programs ORDER BY created_at DESC LIMIT %d OFFSET %d`, programColumns, size, offset)

	var programs []models.HealthProgram
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM health_programs`); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.HealthProgram, error) {
	query := fmt.Sprintf(`SELECT %s FROM health_programs WHERE id = $1`, programColumns)
	var program models.HealthProgram
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// FindByIDs loads every existing program among ids.
func (r *ProgramRepository) FindByIDs(ctx context.Context, ids []string) ([]models.HealthProgram, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM health_programs WHERE id = ANY($1)`, programColumns)
	var programs []models.HealthProgram
	if err := r.db.SelectContext(ctx, &programs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find programs by ids: %w", err)
	}
	return programs, nil
}

// Create persists a new program with no participants.
func (r *ProgramRepository) Create(ctx context.Context, program *models.HealthProgram) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	program.CurrentParticipants = 0
	const query = `INSERT INTO health_programs (id, name, description, duration, cost, max_participants, current_participants, start_date, end_date, created_at, updated_at)
        VALUES (:id, :name, :description, :duration, :cost, :max_participants, :current_participants, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return translateWriteErr("create program", err)
	}
	return nil
}

// Update overwrites the editable fields. The participant counter is untouched.
func (r *ProgramRepository) Update(ctx context.Context, program *models.HealthProgram) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE health_programs SET name = :name, description = :description, duration = :duration, cost = :cost,
        max_participants = :max_participants, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, program)
	if err != nil {
		return translateWriteErr("update program", err)
	}
	return requireAffected(res)
}

// Delete removes a program. Enrollments referencing it are left in place.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM health_programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return requireAffected(res)
}

// ReserveSlot increments the participant counter if capacity allows. A
// max_participants of zero means unlimited. It reports false when the program
// is full or does not exist.
func (r *ProgramRepository) ReserveSlot(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE health_programs SET current_participants = current_participants + 1, updated_at = NOW()
        WHERE id = $1 AND (max_participants = 0 OR current_participants < max_participants)`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("reserve program slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseSlot decrements the participant counter, never below zero. Missing
// programs are ignored.
func (r *ProgramRepository) ReleaseSlot(ctx context.Context, id string) error {
	const query = `UPDATE health_programs SET current_participants = GREATEST(current_participants - 1, 0), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("release program slot: %w", err)
	}
	return nil
}
