package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment, expected models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) (*models.Enrollment, error)
}

type clientReader interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Client, error)
}

type programSlots interface {
	FindByID(ctx context.Context, id string) (*models.HealthProgram, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.HealthProgram, error)
	ReserveSlot(ctx context.Context, id string) (bool, error)
}

// EnrollmentService orchestrates the enrollment lifecycle.
type EnrollmentService struct {
	repo      enrollmentStore
	clients   clientReader
	programs  programSlots
	integrity *IntegrityService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, clients clientReader, programs programSlots, integrity *IntegrityService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		clients:   clients,
		programs:  programs,
		integrity: integrity,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]dto.EnrollmentView, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, fieldError("status", "must be one of: active completed cancelled")
	}
	if filter.ClientID != "" {
		if err := requireID(filter.ClientID, "client"); err != nil {
			return nil, nil, err
		}
	}
	if filter.ProgramID != "" {
		if err := requireID(filter.ProgramID, "health program"); err != nil {
			return nil, nil, err
		}
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return s.views(ctx, enrollments), models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment view.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*dto.EnrollmentView, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.views(ctx, []models.Enrollment{*enrollment})[0]
	return &view, nil
}

// ListForClient returns a client's enrollments newest first. An unknown client
// yields an empty list.
func (s *EnrollmentService) ListForClient(ctx context.Context, clientID string) ([]dto.EnrollmentView, error) {
	if err := requireID(clientID, "client"); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list client enrollments")
	}
	return s.views(ctx, enrollments), nil
}

// Create enrolls a client in a program and links the new enrollment back to
// the client.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*dto.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid enrollment payload")
	}

	status := req.Status
	if status == "" {
		status = models.EnrollmentStatusActive
	}
	start := *req.StartDate
	if req.EndDate != nil && req.EndDate.Before(start.Time) {
		return nil, fieldError("endDate", "must not be before startDate")
	}

	if _, err := s.clients.FindByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load health program")
	}
	if err := s.integrity.EnsureUnique(ctx, req.ClientID, req.ProgramID); err != nil {
		return nil, err
	}

	reserved := false
	if status == models.EnrollmentStatusActive {
		ok, err := s.programs.ReserveSlot(ctx, req.ProgramID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve program slot")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrProgramFull, "")
		}
		reserved = true
	}

	enrollment := &models.Enrollment{
		ClientID:       req.ClientID,
		ProgramID:      req.ProgramID,
		Status:         status,
		EnrollmentDate: s.now().UTC(),
		StartDate:      start.Time,
		EndDate:        req.EndDate.TimePtr(),
		Notes:          req.Notes,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if reserved {
			s.integrity.ReleaseSlot(ctx, *enrollment)
		}
		if isDuplicate(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if err := s.integrity.LinkEnrollment(ctx, enrollment.ClientID, enrollment.ID); err != nil {
		s.logger.Error("enrollment created without client back-reference",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("client_id", enrollment.ClientID),
			zap.Error(err))
	}

	view := s.views(ctx, []models.Enrollment{*enrollment})[0]
	return &view, nil
}

// Update changes status and/or notes. Completed and cancelled enrollments keep
// their status; their notes stay editable.
func (s *EnrollmentService) Update(ctx context.Context, id string, req dto.UpdateEnrollmentRequest) (*dto.EnrollmentView, error) {
	if req.Status == nil && req.Notes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status or notes must be provided")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid enrollment payload")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := current.Status
	updated := *current
	if req.Status != nil {
		if !previous.CanTransitionTo(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				"enrollment status cannot change from "+string(previous)+" to "+string(*req.Status))
		}
		updated.Status = *req.Status
	}
	if req.Notes != nil {
		updated.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, &updated, previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.repo.FindByID(ctx, id); errors.Is(lookupErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment was modified concurrently, please retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	if previous == models.EnrollmentStatusActive && updated.Status != models.EnrollmentStatusActive {
		s.integrity.ReleaseSlot(ctx, *current)
	}

	view := s.views(ctx, []models.Enrollment{updated})[0]
	return &view, nil
}

// Delete removes the enrollment and its client back-reference.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := requireID(id, "enrollment"); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}

	if err := s.integrity.UnlinkEnrollment(ctx, deleted.ClientID, deleted.ID); err != nil {
		s.logger.Error("enrollment deleted but client back-reference remains",
			zap.String("enrollment_id", deleted.ID),
			zap.String("client_id", deleted.ClientID),
			zap.Error(err))
	}
	s.integrity.ReleaseSlot(ctx, *deleted)
	return nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	if err := requireID(id, "enrollment"); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// views joins enrollments with their client and program summaries using one
// batched lookup per entity. Lookup failures degrade to placeholders.
func (s *EnrollmentService) views(ctx context.Context, enrollments []models.Enrollment) []dto.EnrollmentView {
	out := make([]dto.EnrollmentView, 0, len(enrollments))
	if len(enrollments) == 0 {
		return out
	}

	clientIDs := make([]string, 0, len(enrollments))
	programIDs := make([]string, 0, len(enrollments))
	seenClient := make(map[string]struct{})
	seenProgram := make(map[string]struct{})
	for _, e := range enrollments {
		if _, ok := seenClient[e.ClientID]; !ok {
			seenClient[e.ClientID] = struct{}{}
			clientIDs = append(clientIDs, e.ClientID)
		}
		if _, ok := seenProgram[e.ProgramID]; !ok {
			seenProgram[e.ProgramID] = struct{}{}
			programIDs = append(programIDs, e.ProgramID)
		}
	}

	clients := make(map[string]*models.Client, len(clientIDs))
	if found, err := s.clients.FindByIDs(ctx, clientIDs); err != nil {
		s.logger.Warn("failed to load clients for enrollment view", zap.Error(err))
	} else {
		for i := range found {
			clients[found[i].ID] = &found[i]
		}
	}

	programs := make(map[string]*models.HealthProgram, len(programIDs))
	if found, err := s.programs.FindByIDs(ctx, programIDs); err != nil {
		s.logger.Warn("failed to load programs for enrollment view", zap.Error(err))
	} else {
		for i := range found {
			programs[found[i].ID] = &found[i]
		}
	}

	for _, e := range enrollments {
		out = append(out, dto.NewEnrollmentView(e, clients[e.ClientID], programs[e.ProgramID]))
	}
	return out
}
