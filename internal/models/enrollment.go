package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Completed and cancelled are terminal.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// EnrollmentStatuses lists every status in display order.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusActive,
	EnrollmentStatusCompleted,
	EnrollmentStatusCancelled,
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed. Staying in
// the same status is always allowed.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == EnrollmentStatusActive
}

// Enrollment links one client to one health program.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	ClientID       string           `db:"client_id" json:"clientId"`
	ProgramID      string           `db:"program_id" json:"programId"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollmentDate"`
	StartDate      time.Time        `db:"start_date" json:"startDate"`
	EndDate        *time.Time       `db:"end_date" json:"endDate,omitempty"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updatedAt"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ClientID  string
	ProgramID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
