package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]dto.EnrollmentView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.EnrollmentView, error)
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*dto.EnrollmentView, error)
	Update(ctx context.Context, id string, req dto.UpdateEnrollmentRequest) (*dto.EnrollmentView, error)
	Delete(ctx context.Context, id string) error
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param clientId query string false "Filter by client"
// @Param programId query string false "Filter by program"
// @Param status query string false "active, completed or cancelled"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		ClientID:  strings.TrimSpace(c.Query("clientId")),
		ProgramID: strings.TrimSpace(c.Query("programId")),
		Status:    models.EnrollmentStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	views, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	view, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Enroll a client in a health program
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	view, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCreated(c, view.ID)
	response.Created(c, view)
}

// Update godoc
// @Summary Update enrollment status or notes
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req dto.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	view, err := h.enrollments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "enrollment deleted successfully")
}
