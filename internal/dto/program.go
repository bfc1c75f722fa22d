package dto

// CreateProgramRequest defines a health program.
type CreateProgramRequest struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Description     string  `json:"description" validate:"required"`
	Duration        int     `json:"duration" validate:"gte=0"`
	Cost            float64 `json:"cost" validate:"gte=0"`
	MaxParticipants int     `json:"maxParticipants" validate:"gte=0"`
	StartDate       *Date   `json:"startDate"`
	EndDate         *Date   `json:"endDate"`
}

// UpdateProgramRequest carries a partial program update.
type UpdateProgramRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string  `json:"description" validate:"omitempty,min=1"`
	Duration        *int     `json:"duration" validate:"omitempty,gte=0"`
	Cost            *float64 `json:"cost" validate:"omitempty,gte=0"`
	MaxParticipants *int     `json:"maxParticipants" validate:"omitempty,gte=0"`
	StartDate       *Date    `json:"startDate"`
	EndDate         *Date    `json:"endDate"`
}

// Empty reports whether no field was supplied.
func (r UpdateProgramRequest) Empty() bool {
	return r.Name == nil && r.Description == nil && r.Duration == nil && r.Cost == nil &&
		r.MaxParticipants == nil && r.StartDate == nil && r.EndDate == nil
}
