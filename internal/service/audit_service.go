package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
	"github.com/noah-isme/hims-api/pkg/export"
	"github.com/noah-isme/hims-api/pkg/jobs"
)

const (
	auditTaskKind      = "audit.write"
	defaultExportLimit = 5000
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
	ListForExport(ctx context.Context, filter models.AuditLogFilter, limit int) ([]models.AuditLog, error)
}

type tableRenderer interface {
	ContentType() string
	Extension() string
	Render(table export.Table, title string) ([]byte, error)
}

// AuditConfig tunes the background writer and exports.
type AuditConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	WriteTimeout time.Duration
	ExportLimit  int
}

// AuditExport is a rendered audit log download.
type AuditExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AuditService records audit entries on a best-effort basis and serves them
// back for review and export.
type AuditService struct {
	repo      auditStore
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       AuditConfig
	renderers map[string]tableRenderer
	now       func() time.Time
}

// NewAuditService constructs the service and its writer queue. Call Start to
// begin asynchronous writes; until then entries are written inline.
func NewAuditService(repo auditStore, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = defaultExportLimit
	}
	s := &AuditService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		renderers: map[string]tableRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		now: time.Now,
	}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record stores an audit entry. It never fails the caller: a full buffer
// drops the entry and write errors are only logged.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	err := s.queue.TryEnqueue(jobs.Task{ID: entry.ID, Kind: auditTaskKind, Payload: entry})
	switch {
	case err == nil:
		s.metrics.RecordAudit(AuditOutcomeEnqueued)
	case errors.Is(err, jobs.ErrQueueStopped):
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.write(wctx, entry); err != nil {
			s.logger.Warn("failed to record audit log", zap.String("entity_id", entry.EntityID), zap.Error(err))
		}
	default:
		s.metrics.RecordAudit(AuditOutcomeDropped)
		s.logger.Warn("audit log dropped", zap.String("entity_type", string(entry.EntityType)), zap.String("entity_id", entry.EntityID), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, task jobs.Task) error {
	entry, ok := task.Payload.(models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("task_id", task.ID))
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return s.write(wctx, entry)
}

func (s *AuditService) write(ctx context.Context, entry models.AuditLog) error {
	start := time.Now()
	err := s.repo.Create(ctx, &entry)
	s.metrics.ObserveDBQuery("audit_insert", time.Since(start))
	if err != nil {
		s.metrics.RecordAudit(AuditOutcomeFailed)
		return err
	}
	s.metrics.RecordAudit(AuditOutcomeWritten)
	return nil
}

// List returns audit entries newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	filter, err := normaliseAuditFilter(filter)
	if err != nil {
		return nil, nil, err
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Export renders matching entries as csv or pdf.
func (s *AuditService) Export(ctx context.Context, filter models.AuditLogFilter, format string) (*AuditExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, fieldError("format", "must be one of: csv pdf")
	}
	filter, err := normaliseAuditFilter(filter)
	if err != nil {
		return nil, err
	}

	logs, err := s.repo.ListForExport(ctx, filter, s.cfg.ExportLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs")
	}

	data, err := renderer.Render(auditTable(logs), "Audit Log")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return &AuditExport{
		Filename:    fmt.Sprintf("audit-logs-%s.%s", s.now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func auditTable(logs []models.AuditLog) export.Table {
	table := export.Table{
		Columns: []export.Column{
			{Key: "timestamp", Title: "Timestamp", Width: 1.4},
			{Key: "user", Title: "User", Width: 1.6},
			{Key: "action", Title: "Action", Width: 0.7},
			{Key: "entityType", Title: "Entity", Width: 0.9},
			{Key: "entityId", Title: "Entity ID", Width: 2},
			{Key: "details", Title: "Details", Width: 2.4},
		},
		Rows: make([]map[string]string, 0, len(logs)),
	}
	for _, l := range logs {
		user := l.UserEmail
		if user == "" {
			user = l.UserID
		}
		table.Rows = append(table.Rows, map[string]string{
			"timestamp":  l.CreatedAt.UTC().Format(time.RFC3339),
			"user":       user,
			"action":     string(l.Action),
			"entityType": string(l.EntityType),
			"entityId":   l.EntityID,
			"details":    l.Details,
		})
	}
	return table
}

// normaliseAuditFilter makes a date-only end bound cover the whole day.
func normaliseAuditFilter(filter models.AuditLogFilter) (models.AuditLogFilter, error) {
	if filter.EndDate != nil {
		end := *filter.EndDate
		if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0 {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = &end
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return filter, fieldError("endDate", "must not be before startDate")
	}
	return filter, nil
}

// ActionFromMethod maps an HTTP verb to the audited action.
func ActionFromMethod(method string) (models.AuditAction, bool) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return models.AuditActionView, true
	case http.MethodPost:
		return models.AuditActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return models.AuditActionUpdate, true
	case http.MethodDelete:
		return models.AuditActionDelete, true
	default:
		return "", false
	}
}
