package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hims-api/internal/models"
)

const auditColumns = `id, user_id, user_email, action, entity_type, entity_id, details, created_at`

// AuditRepository appends and queries audit log entries.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, user_email, action, entity_type, entity_id, details, created_at)
        VALUES (:id, :user_id, :user_email, :action, :entity_type, :entity_id, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns a page of entries matching filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	clause, args := auditWhere(filter)
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, auditColumns, clause, size, offset)
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}

// ListForExport returns up to limit entries matching filter, newest first.
func (r *AuditRepository) ListForExport(ctx context.Context, filter models.AuditLogFilter, limit int) ([]models.AuditLog, error) {
	clause, args := auditWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT %d`, auditColumns, clause, limit)
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return logs, nil
}

func auditWhere(filter models.AuditLogFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
