package dto

import (
	"time"

	"github.com/noah-isme/hims-api/internal/models"
)

// DashboardStats is the analytics dashboard payload.
type DashboardStats struct {
	TotalClients          int                             `json:"totalClients"`
	TotalPrograms         int                             `json:"totalPrograms"`
	TotalEnrollments      int                             `json:"totalEnrollments"`
	EnrollmentsPerProgram []models.ProgramEnrollmentCount `json:"enrollmentsPerProgram"`
	MostPopularProgram    *models.ProgramEnrollmentCount  `json:"mostPopularProgram"`
	EnrollmentTrend       []models.DailyCount             `json:"enrollmentTrend"`
	GenderDistribution    []models.LabelCount             `json:"genderDistribution"`
	StatusBreakdown       []models.LabelCount             `json:"statusBreakdown"`
	GeneratedAt           time.Time                       `json:"generatedAt"`
}
