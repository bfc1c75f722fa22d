package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hims-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregate queries for the dashboard.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CountClients returns the number of clients.
func (r *AnalyticsRepository) CountClients(ctx context.Context) (int, error) {
	return r.count(ctx, "clients")
}

// CountPrograms returns the number of health programs.
func (r *AnalyticsRepository) CountPrograms(ctx context.Context) (int, error) {
	return r.count(ctx, "health_programs")
}

// CountEnrollments returns the number of enrollments.
func (r *AnalyticsRepository) CountEnrollments(ctx context.Context) (int, error) {
	return r.count(ctx, "enrollments")
}

func (r *AnalyticsRepository) count(ctx context.Context, table string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

// EnrollmentsPerProgram counts enrollments per existing program ordered by
// program name. Enrollments of deleted programs are not counted.
func (r *AnalyticsRepository) EnrollmentsPerProgram(ctx context.Context) ([]models.ProgramEnrollmentCount, error) {
	const query = `SELECT e.program_id, p.name AS program_name, COUNT(*) AS count
        FROM enrollments e
        JOIN health_programs p ON p.id = e.program_id
        GROUP BY e.program_id, p.name
        ORDER BY p.name ASC, e.program_id ASC`
	var counts []models.ProgramEnrollmentCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("enrollments per program: %w", err)
	}
	return counts, nil
}

// DailyEnrollments buckets enrollments created at or after since by UTC day.
// Days without enrollments are absent.
func (r *AnalyticsRepository) DailyEnrollments(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	const query = `SELECT to_char(enrollment_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count
        FROM enrollments
        WHERE enrollment_date >= $1
        GROUP BY day
        ORDER BY day ASC`
	var counts []models.DailyCount
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("daily enrollments: %w", err)
	}
	return counts, nil
}

// GenderDistribution counts clients per gender.
func (r *AnalyticsRepository) GenderDistribution(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT gender AS label, COUNT(*) AS count FROM clients GROUP BY gender ORDER BY gender ASC`
	var counts []models.LabelCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("gender distribution: %w", err)
	}
	return counts, nil
}

// StatusBreakdown counts enrollments per status.
func (r *AnalyticsRepository) StatusBreakdown(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT status AS label, COUNT(*) AS count FROM enrollments GROUP BY status ORDER BY status ASC`
	var counts []models.LabelCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}
	return counts, nil
}
