package models

import "time"

// HealthProgram is a care programme clients can be enrolled in.
type HealthProgram struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	Description         string     `db:"description" json:"description"`
	Duration            int        `db:"duration" json:"duration"`
	Cost                float64    `db:"cost" json:"cost"`
	MaxParticipants     int        `db:"max_participants" json:"maxParticipants"`
	CurrentParticipants int        `db:"current_participants" json:"currentParticipants"`
	StartDate           *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate             *time.Time `db:"end_date" json:"endDate,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// Unlimited reports whether the program accepts any number of participants.
func (p *HealthProgram) Unlimited() bool {
	return p.MaxParticipants == 0
}

// ProgramFilter captures listing criteria.
type ProgramFilter struct {
	Page     int
	PageSize int
}
