package models

import "time"

// ProgramEnrollmentCount is the number of enrollments referencing one program.
type ProgramEnrollmentCount struct {
	ProgramID   string `db:"program_id" json:"programId"`
	ProgramName string `db:"program_name" json:"programName"`
	Count       int    `db:"count" json:"count"`
}

// DailyCount buckets a value by calendar day (YYYY-MM-DD, UTC).
type DailyCount struct {
	Date  string `db:"day" json:"date"`
	Count int    `db:"count" json:"count"`
}

// LabelCount is a generic histogram bucket.
type LabelCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// SystemMetrics summarises process-level counters for operators.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	AuditEnqueued            uint64    `json:"auditEnqueued"`
	AuditDropped             uint64    `json:"auditDropped"`
	AuditFailed              uint64    `json:"auditFailed"`
	RateLimited              uint64    `json:"rateLimited"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
