package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hims-api/internal/models"
)

func TestNewEnrollmentViewUsesPlaceholdersForMissingReferences(t *testing.T) {
	e := models.Enrollment{
		ID:        "e1",
		ClientID:  "c1",
		ProgramID: "p1",
		Status:    models.EnrollmentStatusActive,
		StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	view := NewEnrollmentView(e, nil, nil)
	assert.Equal(t, "p1", view.Program.ID)
	assert.Empty(t, view.Program.Name)
	assert.Equal(t, "c1", view.Client.ID)
	assert.Nil(t, view.EndDate)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"startDate":"2024-05-01"`)
	assert.Contains(t, string(raw), `"endDate":null`)
}

func TestNewEnrollmentViewCopiesProgramFields(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	program := &models.HealthProgram{ID: "p1", Name: "Diabetes Care", Description: "d", Duration: 30, Cost: 150.5, StartDate: &start}
	client := &models.Client{ID: "c1", FirstName: "Ana", LastName: "Lee"}

	view := NewEnrollmentView(models.Enrollment{ID: "e1", ClientID: "c1", ProgramID: "p1"}, client, program)
	assert.Equal(t, "Diabetes Care", view.Program.Name)
	assert.Equal(t, 150.5, view.Program.Cost)
	require.NotNil(t, view.Program.StartDate)
	assert.Equal(t, start, view.Program.StartDate.Time)
	assert.Equal(t, "Lee", view.Client.LastName)
}
