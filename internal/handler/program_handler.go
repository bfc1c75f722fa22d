package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/pkg/response"
)

type programService interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.HealthProgram, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.HealthProgram, error)
	Create(ctx context.Context, req dto.CreateProgramRequest) (*models.HealthProgram, error)
	Update(ctx context.Context, id string, req dto.UpdateProgramRequest) (*models.HealthProgram, error)
	Delete(ctx context.Context, id string) error
}

// ProgramHandler exposes health program endpoints.
type ProgramHandler struct {
	programs programService
}

// NewProgramHandler constructs ProgramHandler.
func NewProgramHandler(programs programService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// List godoc
// @Summary List health programs
// @Tags Health Programs
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /health-programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	var filter models.ProgramFilter
	filter.Page, filter.PageSize = pageParams(c)

	programs, pagination, err := h.programs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, pagination)
}

// Get godoc
// @Summary Get health program
// @Tags Health Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /health-programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Create godoc
// @Summary Create health program
// @Tags Health Programs
// @Accept json
// @Produce json
// @Param payload body dto.CreateProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /health-programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req dto.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	program, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCreated(c, program.ID)
	response.Created(c, program)
}

// Update godoc
// @Summary Update health program
// @Tags Health Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body dto.UpdateProgramRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /health-programs/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	var req dto.UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	program, err := h.programs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Delete godoc
// @Summary Delete health program
// @Tags Health Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /health-programs/{id} [delete]
func (h *ProgramHandler) Delete(c *gin.Context) {
	if err := h.programs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "health program deleted successfully")
}
