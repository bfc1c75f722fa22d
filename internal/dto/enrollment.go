package dto

import (
	"time"

	"github.com/noah-isme/hims-api/internal/models"
)

// CreateEnrollmentRequest enrolls a client in a program. Status defaults to
// active.
type CreateEnrollmentRequest struct {
	ClientID  string                  `json:"clientId" validate:"required,uuid"`
	ProgramID string                  `json:"programId" validate:"required,uuid"`
	StartDate *Date                   `json:"startDate" validate:"required"`
	EndDate   *Date                   `json:"endDate"`
	Status    models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=active completed cancelled"`
	Notes     *string                 `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateEnrollmentRequest changes status and/or notes. At least one is required.
type UpdateEnrollmentRequest struct {
	Status *models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=active completed cancelled"`
	Notes  *string                  `json:"notes" validate:"omitempty,max=2000"`
}

// ProgramSummary is the program slice embedded in enrollment views. Only ID is
// set when the program no longer exists.
type ProgramSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    int     `json:"duration"`
	Cost        float64 `json:"cost"`
	StartDate   *Date   `json:"startDate"`
	EndDate     *Date   `json:"endDate"`
}

// ClientSummary is the client slice embedded in enrollment views.
type ClientSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// EnrollmentView is an enrollment joined with client and program summaries.
type EnrollmentView struct {
	ID             string                  `json:"id"`
	Program        ProgramSummary          `json:"program"`
	Client         ClientSummary           `json:"client"`
	Status         models.EnrollmentStatus `json:"status"`
	StartDate      Date                    `json:"startDate"`
	EndDate        *Date                   `json:"endDate"`
	Notes          *string                 `json:"notes,omitempty"`
	EnrollmentDate time.Time               `json:"enrollmentDate"`
}

// NewProgramSummary builds a summary; a nil program yields a placeholder.
func NewProgramSummary(id string, p *models.HealthProgram) ProgramSummary {
	if p == nil {
		return ProgramSummary{ID: id}
	}
	return ProgramSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Duration:    p.Duration,
		Cost:        p.Cost,
		StartDate:   DatePtr(p.StartDate),
		EndDate:     DatePtr(p.EndDate),
	}
}

// NewClientSummary builds a summary; a nil client yields a placeholder.
func NewClientSummary(id string, c *models.Client) ClientSummary {
	if c == nil {
		return ClientSummary{ID: id}
	}
	return ClientSummary{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName}
}

// NewEnrollmentView assembles the denormalized view. It never fails.
func NewEnrollmentView(e models.Enrollment, client *models.Client, program *models.HealthProgram) EnrollmentView {
	return EnrollmentView{
		ID:             e.ID,
		Program:        NewProgramSummary(e.ProgramID, program),
		Client:         NewClientSummary(e.ClientID, client),
		Status:         e.Status,
		StartDate:      NewDate(e.StartDate),
		EndDate:        DatePtr(e.EndDate),
		Notes:          e.Notes,
		EnrollmentDate: e.EnrollmentDate,
	}
}
