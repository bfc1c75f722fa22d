package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/pkg/response"
)

type clientService interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, *models.Pagination, error)
	Search(ctx context.Context, query string) ([]models.Client, error)
	Get(ctx context.Context, id string) (*dto.ClientProfile, error)
	Create(ctx context.Context, req dto.CreateClientRequest) (*models.Client, error)
	Update(ctx context.Context, id string, req dto.UpdateClientRequest) (*models.Client, error)
	Delete(ctx context.Context, id string) error
}

type clientEnrollmentService interface {
	ListForClient(ctx context.Context, clientID string) ([]dto.EnrollmentView, error)
}

// ClientHandler exposes client endpoints.
type ClientHandler struct {
	clients     clientService
	enrollments clientEnrollmentService
}

// NewClientHandler constructs ClientHandler.
func NewClientHandler(clients clientService, enrollments clientEnrollmentService) *ClientHandler {
	return &ClientHandler{clients: clients, enrollments: enrollments}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	var filter models.ClientFilter
	filter.Page, filter.PageSize = pageParams(c)

	clients, pagination, err := h.clients.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, pagination)
}

// Search godoc
// @Summary Search clients by name, email or contact number
// @Tags Clients
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /clients/search [get]
func (h *ClientHandler) Search(c *gin.Context) {
	clients, err := h.clients.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clients, nil)
}

// Get godoc
// @Summary Get client profile with enrollments
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	profile, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Enrollments godoc
// @Summary List a client's enrollments
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clients/{id}/enrollments [get]
func (h *ClientHandler) Enrollments(c *gin.Context) {
	views, err := h.enrollments.ListForClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Create godoc
// @Summary Register client
// @Tags Clients
// @Accept json
// @Produce json
// @Param payload body dto.CreateClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req dto.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	client, err := h.clients.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	markCreated(c, client.ID)
	response.Created(c, client)
}

// Update godoc
// @Summary Update client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param payload body dto.UpdateClientRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	client, err := h.clients.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, client, nil)
}

// Delete godoc
// @Summary Delete client and its enrollments
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /clients/{id} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "client and associated enrollments deleted successfully")
}
