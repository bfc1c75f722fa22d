package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/repository"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

type clientLinkStore interface {
	Delete(ctx context.Context, id string) error
	LinkEnrollment(ctx context.Context, clientID, enrollmentID string) (bool, error)
	UnlinkEnrollment(ctx context.Context, clientID, enrollmentID string) error
}

type enrollmentPairStore interface {
	ExistsForPair(ctx context.Context, clientID, programID string) (bool, error)
	DeleteByClient(ctx context.Context, clientID string) ([]models.Enrollment, error)
}

type slotReleaser interface {
	ReleaseSlot(ctx context.Context, programID string) error
}

// IntegrityService keeps the client back-reference list consistent with the
// enrollments table and enforces one enrollment per (client, program).
type IntegrityService struct {
	clients     clientLinkStore
	enrollments enrollmentPairStore
	programs    slotReleaser
	logger      *zap.Logger
}

// NewIntegrityService constructs IntegrityService.
func NewIntegrityService(clients clientLinkStore, enrollments enrollmentPairStore, programs slotReleaser, logger *zap.Logger) *IntegrityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityService{clients: clients, enrollments: enrollments, programs: programs, logger: logger}
}

// LinkEnrollment records enrollmentID on the client. A client deleted since the
// enrollment was checked is not an error; the orphaned enrollment is logged.
func (s *IntegrityService) LinkEnrollment(ctx context.Context, clientID, enrollmentID string) error {
	found, err := s.clients.LinkEnrollment(ctx, clientID, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link enrollment to client")
	}
	if !found {
		s.logger.Warn("enrollment references a client that no longer exists",
			zap.String("client_id", clientID),
			zap.String("enrollment_id", enrollmentID))
	}
	return nil
}

// UnlinkEnrollment drops enrollmentID from the client. Removing an absent id,
// or unlinking from a deleted client, is a no-op.
func (s *IntegrityService) UnlinkEnrollment(ctx context.Context, clientID, enrollmentID string) error {
	if err := s.clients.UnlinkEnrollment(ctx, clientID, enrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink enrollment from client")
	}
	return nil
}

// EnsureUnique fails with DUPLICATE_ENROLLMENT when the pair is already enrolled.
func (s *IntegrityService) EnsureUnique(ctx context.Context, clientID, programID string) error {
	exists, err := s.enrollments.ExistsForPair(ctx, clientID, programID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}
	return nil
}

// DeleteClientCascade deletes the client and then every enrollment that
// references it. The two steps are not atomic: if the second fails the client
// is already gone and the call reports an internal error.
func (s *IntegrityService) DeleteClientCascade(ctx context.Context, clientID string) (int, error) {
	if err := requireID(clientID, "client"); err != nil {
		return 0, err
	}
	if err := s.clients.Delete(ctx, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete client")
	}

	removed, err := s.enrollments.DeleteByClient(ctx, clientID)
	if err != nil {
		s.logger.Error("client deleted but enrollments remain", zap.String("client_id", clientID), zap.Error(err))
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "client deleted but associated enrollments could not be removed")
	}
	for _, enrollment := range removed {
		s.ReleaseSlot(ctx, enrollment)
	}
	s.logger.Info("client deleted", zap.String("client_id", clientID), zap.Int("enrollments_removed", len(removed)))
	return len(removed), nil
}

// ReleaseSlot frees the program seat held by an active enrollment. Failures
// are logged; the counter is advisory.
func (s *IntegrityService) ReleaseSlot(ctx context.Context, enrollment models.Enrollment) {
	if enrollment.Status != models.EnrollmentStatusActive || s.programs == nil {
		return
	}
	if err := s.programs.ReleaseSlot(ctx, enrollment.ProgramID); err != nil {
		s.logger.Warn("failed to release program slot",
			zap.String("program_id", enrollment.ProgramID),
			zap.String("enrollment_id", enrollment.ID),
			zap.Error(err))
	}
}

// isDuplicate reports whether err came from a unique index violation.
func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}
