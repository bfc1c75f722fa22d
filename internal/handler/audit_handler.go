package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/service"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
	"github.com/noah-isme/hims-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error)
	Export(ctx context.Context, filter models.AuditLogFilter, format string) (*service.AuditExport, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit auditService
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit auditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit logs
// @Tags Audit Logs
// @Produce json
// @Param entityType query string false "client, program or enrollment"
// @Param action query string false "create, update, delete or view"
// @Param userId query string false "Actor"
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD, inclusive"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, pagination, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Export godoc
// @Summary Export audit logs
// @Tags Audit Logs
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.audit.Export(c.Request.Context(), filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func auditFilter(c *gin.Context) (models.AuditLogFilter, error) {
	filter := models.AuditLogFilter{
		EntityType: models.AuditEntityType(strings.ToLower(strings.TrimSpace(c.Query("entityType")))),
		Action:     models.AuditAction(strings.ToLower(strings.TrimSpace(c.Query("action")))),
		UserID:     strings.TrimSpace(c.Query("userId")),
	}
	filter.Page, filter.PageSize = pageParams(c)

	switch filter.EntityType {
	case "", models.AuditEntityClient, models.AuditEntityProgram, models.AuditEntityEnrollment:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "entityType must be one of: client program enrollment")
	}
	switch filter.Action {
	case "", models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete, models.AuditActionView:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "action must be one of: create update delete view")
	}

	var err error
	if filter.StartDate, err = queryDate(c, "startDate"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = queryDate(c, "endDate"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := dto.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a date (YYYY-MM-DD)")
	}
	return &d.Time, nil
}
