package models

import "time"

// AuditAction classifies what was done to an entity.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionView   AuditAction = "view"
)

// AuditEntityType names the audited resource kinds.
type AuditEntityType string

const (
	AuditEntityClient     AuditEntityType = "client"
	AuditEntityProgram    AuditEntityType = "program"
	AuditEntityEnrollment AuditEntityType = "enrollment"
)

// AuditLog is an append-only audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"userId"`
	UserEmail  string          `db:"user_email" json:"userEmail"`
	Action     AuditAction     `db:"action" json:"action"`
	EntityType AuditEntityType `db:"entity_type" json:"entityType"`
	EntityID   string          `db:"entity_id" json:"entityId"`
	Details    string          `db:"details" json:"details"`
	CreatedAt  time.Time       `db:"created_at" json:"timestamp"`
}

// AuditLogFilter captures audit listing criteria. Dates are inclusive.
type AuditLogFilter struct {
	EntityType AuditEntityType
	Action     AuditAction
	UserID     string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PageSize   int
}
