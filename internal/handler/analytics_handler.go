package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/pkg/response"
)

type analyticsService interface {
	Dashboard(ctx context.Context) (*dto.DashboardStats, error)
}

// AnalyticsHandler serves dashboard statistics.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Dashboard godoc
// @Summary Dashboard statistics
// @Description Totals, enrollments per program, most popular program, 7 day trend and gender distribution.
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	stats, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
