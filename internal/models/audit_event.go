package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent is one immutable record of a security- or state-relevant action.
// Rows are append-only: nothing ever updates an event after creation, and the
// only deletion path is the retention purger. There is deliberately no Base
// embed, no UpdatedAt, no soft delete.
type AuditEvent struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index:idx_audit_events_ts_id,priority:1" json:"timestamp"`

	// Actor is optional: pre-authentication and system events have none.
	ActorID   *string `gorm:"index" json:"actor_id,omitempty"`
	ActorName string  `gorm:"size:255" json:"actor_name,omitempty"`
	Origin    string  `gorm:"size:64" json:"origin,omitempty"`

	Action  ActionType `gorm:"not null;index" json:"action"`
	Outcome Outcome    `gorm:"not null" json:"outcome"`

	// FailureReason is bounded and always empty when Outcome is success.
	FailureReason string `gorm:"size:1000" json:"failure_reason,omitempty"`

	ResourceType ResourceType `gorm:"not null;index" json:"resource_type"`
	ResourceID   string       `gorm:"not null;size:255;index" json:"resource_id"`
	ResourceName string       `gorm:"size:255" json:"resource_name,omitempty"`

	// Tenant scope; nil for platform-global events.
	OrgID   *string `gorm:"index" json:"org_id,omitempty"`
	OrgName string  `gorm:"size:255" json:"org_name,omitempty"`

	// Details holds a size-bounded structured document serialized once at
	// build time. Never secrets, tokens, or raw request bodies.
	Details datatypes.JSON `json:"details,omitempty"`

	CorrelationID string `gorm:"size:64;index" json:"correlation_id,omitempty"`
}

// TableName pins the table used by the migrations.
func (AuditEvent) TableName() string {
	return "audit_events"
}
