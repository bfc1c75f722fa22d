package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

const clientSearchLimit = 20

type clientStore interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error)
	Search(ctx context.Context, term string, limit int) ([]models.Client, error)
	FindByID(ctx context.Context, id string) (*models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
}

type clientEnrollmentLister interface {
	ListForClient(ctx context.Context, clientID string) ([]dto.EnrollmentView, error)
}

type clientCascader interface {
	DeleteClientCascade(ctx context.Context, clientID string) (int, error)
}

// ClientService handles client registration and profile management.
type ClientService struct {
	repo        clientStore
	enrollments clientEnrollmentLister
	integrity   clientCascader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClientService constructs the client service.
func NewClientService(repo clientStore, enrollments clientEnrollmentLister, integrity clientCascader, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, enrollments: enrollments, integrity: integrity, validator: validate, logger: logger}
}

// List returns clients sorted by name with pagination metadata.
func (s *ClientService) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, *models.Pagination, error) {
	clients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	return clients, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Search finds up to 20 clients by name, email or contact number.
func (s *ClientService) Search(ctx context.Context, query string) ([]models.Client, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query parameter 'q' is required")
	}
	clients, err := s.repo.Search(ctx, query, clientSearchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search clients")
	}
	return clients, nil
}

// Get returns a client with its enrollments.
func (s *ClientService) Get(ctx context.Context, id string) (*dto.ClientProfile, error) {
	client, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListForClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.ClientProfile{Client: *client, Enrollments: enrollments}, nil
}

// Create registers a new client. Emails are stored lower-cased.
func (s *ClientService) Create(ctx context.Context, req dto.CreateClientRequest) (*models.Client, error) {
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid client payload")
	}
	client := &models.Client{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		DateOfBirth:   req.DateOfBirth.Time,
		Gender:        req.Gender,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         req.Email,
		Address:       strings.TrimSpace(req.Address),
	}
	if err := s.repo.Create(ctx, client); err != nil {
		if isDuplicate(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a client with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	return client, nil
}

// Update applies a partial update. The back-reference list is never touched.
func (s *ClientService) Update(ctx context.Context, id string, req dto.UpdateClientRequest) (*models.Client, error) {
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one field must be provided")
	}
	if req.Email != nil {
		email := normaliseEmail(*req.Email)
		req.Email = &email
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid client payload")
	}
	client, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		client.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		client.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.DateOfBirth != nil {
		client.DateOfBirth = req.DateOfBirth.Time
	}
	if req.Gender != nil {
		client.Gender = *req.Gender
	}
	if req.ContactNumber != nil {
		client.ContactNumber = strings.TrimSpace(*req.ContactNumber)
	}
	if req.Email != nil {
		client.Email = *req.Email
	}
	if req.Address != nil {
		client.Address = strings.TrimSpace(*req.Address)
	}

	if err := s.repo.Update(ctx, client); err != nil {
		switch {
		case isDuplicate(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a client with this email already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update client")
	}
	return client, nil
}

// Delete removes a client and all of its enrollments.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	_, err := s.integrity.DeleteClientCascade(ctx, id)
	return err
}

func (s *ClientService) load(ctx context.Context, id string) (*models.Client, error) {
	if err := requireID(id, "client"); err != nil {
		return nil, err
	}
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return client, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
