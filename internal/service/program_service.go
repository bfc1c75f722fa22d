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

type programStore interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.HealthProgram, int, error)
	FindByID(ctx context.Context, id string) (*models.HealthProgram, error)
	Create(ctx context.Context, program *models.HealthProgram) error
	Update(ctx context.Context, program *models.HealthProgram) error
	Delete(ctx context.Context, id string) error
}

// ProgramService manages health programs. Deleting a program keeps its
// enrollments as history.
type ProgramService struct {
	repo      programStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programStore, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns programs newest first.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.HealthProgram, *models.Pagination, error) {
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list health programs")
	}
	return programs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a program by id.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.HealthProgram, error) {
	return s.load(ctx, id)
}

// Create defines a new program.
func (s *ProgramService) Create(ctx context.Context, req dto.CreateProgramRequest) (*models.HealthProgram, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid health program payload")
	}
	program := &models.HealthProgram{
		Name:            req.Name,
		Description:     req.Description,
		Duration:        req.Duration,
		Cost:            req.Cost,
		MaxParticipants: req.MaxParticipants,
		StartDate:       req.StartDate.TimePtr(),
		EndDate:         req.EndDate.TimePtr(),
	}
	if err := validateProgramDates(program); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, program); err != nil {
		if isDuplicate(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a health program with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create health program")
	}
	return program, nil
}

// Update applies a partial update.
func (s *ProgramService) Update(ctx context.Context, id string, req dto.UpdateProgramRequest) (*models.HealthProgram, error) {
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one field must be provided")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid health program payload")
	}
	program, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		program.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.Duration != nil {
		program.Duration = *req.Duration
	}
	if req.Cost != nil {
		program.Cost = *req.Cost
	}
	if req.MaxParticipants != nil {
		if *req.MaxParticipants > 0 && *req.MaxParticipants < program.CurrentParticipants {
			return nil, fieldError("maxParticipants", "must not be lower than the current number of participants")
		}
		program.MaxParticipants = *req.MaxParticipants
	}
	if req.StartDate != nil {
		program.StartDate = req.StartDate.TimePtr()
	}
	if req.EndDate != nil {
		program.EndDate = req.EndDate.TimePtr()
	}
	if err := validateProgramDates(program); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, program); err != nil {
		switch {
		case isDuplicate(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a health program with this name already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update health program")
	}
	return program, nil
}

// Delete removes a program. Enrollments that reference it are kept and render
// with a placeholder program.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	if err := requireID(id, "health program"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "health program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete health program")
	}
	s.logger.Info("health program deleted", zap.String("program_id", id))
	return nil
}

func (s *ProgramService) load(ctx context.Context, id string) (*models.HealthProgram, error) {
	if err := requireID(id, "health program"); err != nil {
		return nil, err
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load health program")
	}
	return program, nil
}

func validateProgramDates(p *models.HealthProgram) error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return fieldError("endDate", "must not be before startDate")
	}
	return nil
}
