package dto

import "github.com/noah-isme/hims-api/internal/models"

// CreateClientRequest registers a new client.
type CreateClientRequest struct {
	FirstName     string        `json:"firstName" validate:"required,max=100"`
	LastName      string        `json:"lastName" validate:"required,max=100"`
	DateOfBirth   *Date         `json:"dateOfBirth" validate:"required"`
	Gender        models.Gender `json:"gender" validate:"required,oneof=male female other"`
	ContactNumber string        `json:"contactNumber" validate:"required,max=40"`
	Email         string        `json:"email" validate:"required,email"`
	Address       string        `json:"address" validate:"required,max=500"`
}

// UpdateClientRequest carries a partial client update. The back-reference list
// is not part of the payload and cannot be changed here.
type UpdateClientRequest struct {
	FirstName     *string        `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName      *string        `json:"lastName" validate:"omitempty,min=1,max=100"`
	DateOfBirth   *Date          `json:"dateOfBirth"`
	Gender        *models.Gender `json:"gender" validate:"omitempty,oneof=male female other"`
	ContactNumber *string        `json:"contactNumber" validate:"omitempty,min=1,max=40"`
	Email         *string        `json:"email" validate:"omitempty,email"`
	Address       *string        `json:"address" validate:"omitempty,min=1,max=500"`
}

// Empty reports whether no field was supplied.
func (r UpdateClientRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.DateOfBirth == nil && r.Gender == nil &&
		r.ContactNumber == nil && r.Email == nil && r.Address == nil
}

// ClientProfile is a client together with its denormalized enrollments.
type ClientProfile struct {
	models.Client
	Enrollments []EnrollmentView `json:"enrollments"`
}
