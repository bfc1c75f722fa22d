package models

import (
	"time"

	"github.com/lib/pq"
)

// Gender enumerates the accepted client genders.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Client is a person registered with the hospital.
type Client struct {
	ID            string    `db:"id" json:"id"`
	FirstName     string    `db:"first_name" json:"firstName"`
	LastName      string    `db:"last_name" json:"lastName"`
	DateOfBirth   time.Time `db:"date_of_birth" json:"dateOfBirth"`
	Gender        Gender    `db:"gender" json:"gender"`
	ContactNumber string    `db:"contact_number" json:"contactNumber"`
	Email         string    `db:"email" json:"email"`
	Address       string    `db:"address" json:"address"`
	// EnrolledPrograms holds enrollment ids pointing at this client, oldest first.
	EnrolledPrograms pq.StringArray `db:"enrolled_programs" json:"enrolledPrograms"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// HasEnrollment reports whether the back-reference list contains id.
func (c *Client) HasEnrollment(id string) bool {
	for _, ref := range c.EnrolledPrograms {
		if ref == id {
			return true
		}
	}
	return false
}

// ClientFilter captures listing criteria.
type ClientFilter struct {
	Page     int
	PageSize int
}
