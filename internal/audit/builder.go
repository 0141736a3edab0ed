// Package audit implements the audit event pipeline: event construction,
// buffered and synchronous write paths, the filtered read path, streamed
// exports, and retention purging. Domain services build events with Builder
// and hand them to a Recorder; they never talk to the store directly.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tribune/internal/models"
	"tribune/internal/uuid"
)

const (
	// MaxFailureReasonLen bounds the stored failure reason. Longer reasons
	// are truncated, never rejected.
	MaxFailureReasonLen = 1000

	// MaxDetailsBytes bounds the serialized details document.
	MaxDetailsBytes = 8 * 1024
)

// Construction errors. These are the only errors the write path ever
// surfaces to domain code, and only before any I/O has happened.
var (
	ErrInvalidAction       = errors.New("audit: invalid action type")
	ErrMissingResourceType = errors.New("audit: resource type is required")
	ErrMissingResourceID   = errors.New("audit: resource id is required")
	ErrInvalidOutcome      = errors.New("audit: invalid outcome")
	ErrDetailsTooLarge     = errors.New("audit: details document exceeds size bound")
)

// Actor identifies who performed the audited operation. Zero value means a
// pre-authentication or system actor.
type Actor struct {
	ID     string
	Name   string
	Origin string
}

// Builder assembles an immutable AuditEvent. It performs no I/O; Build is
// cheap enough to run on the request path.
type Builder struct {
	event   models.AuditEvent
	details map[string]any
	outcome models.Outcome
	reason  string
}

// NewEvent starts a builder for the given action against a specific resource.
// Both the resource type and id are mandatory; Build rejects the event when
// either is missing.
func NewEvent(action models.ActionType, resource models.ResourceType, resourceID string) *Builder {
	return &Builder{
		event: models.AuditEvent{
			Action:       action,
			ResourceType: resource,
			ResourceID:   resourceID,
		},
		outcome: models.OutcomeSuccess,
	}
}

// Actor attaches the acting user. Pass the zero Actor for system events.
func (b *Builder) Actor(actor Actor) *Builder {
	if actor.ID != "" {
		id := actor.ID
		b.event.ActorID = &id
	}
	b.event.ActorName = actor.Name
	b.event.Origin = actor.Origin
	return b
}

// Org scopes the event to a tenant organization.
func (b *Builder) Org(id, name string) *Builder {
	if id != "" {
		orgID := id
		b.event.OrgID = &orgID
	}
	b.event.OrgName = name
	return b
}

// ResourceName records a denormalized human-readable snapshot of the resource.
func (b *Builder) ResourceName(name string) *Builder {
	b.event.ResourceName = name
	return b
}

// CorrelationID links events belonging to one logical operation.
func (b *Builder) CorrelationID(id string) *Builder {
	b.event.CorrelationID = id
	return b
}

// Details attaches a structured document. It is serialized once at Build
// time, so later mutation of the map cannot corrupt the stored record.
// Callers must not put secrets, tokens, or raw request bodies in it.
func (b *Builder) Details(details map[string]any) *Builder {
	b.details = details
	return b
}

// Success marks the event as a successful operation. This is the default.
func (b *Builder) Success() *Builder {
	b.outcome = models.OutcomeSuccess
	b.reason = ""
	return b
}

// Failure marks the event as failed with a bounded reason. Reasons longer
// than MaxFailureReasonLen are truncated to exactly that length.
func (b *Builder) Failure(reason string) *Builder {
	b.outcome = models.OutcomeFailure
	b.reason = truncate(reason, MaxFailureReasonLen)
	return b
}

// Denied marks the event as an authorization denial.
func (b *Builder) Denied() *Builder {
	b.outcome = models.OutcomeDenied
	b.reason = ""
	return b
}

// Partial marks the event as partially completed with a bounded reason.
func (b *Builder) Partial(reason string) *Builder {
	b.outcome = models.OutcomePartial
	b.reason = truncate(reason, MaxFailureReasonLen)
	return b
}

// Build validates the event and freezes it: id and UTC timestamp are set
// here and never change afterwards. Returns a construction error when the
// resource identity is incomplete or the details document is oversized.
func (b *Builder) Build() (models.AuditEvent, error) {
	if !b.event.Action.Valid() {
		return models.AuditEvent{}, ErrInvalidAction
	}
	if !b.event.ResourceType.Valid() {
		return models.AuditEvent{}, ErrMissingResourceType
	}
	if b.event.ResourceID == "" {
		return models.AuditEvent{}, ErrMissingResourceID
	}
	if !b.outcome.Valid() {
		return models.AuditEvent{}, ErrInvalidOutcome
	}

	event := b.event
	event.Outcome = b.outcome
	if b.outcome == models.OutcomeSuccess {
		event.FailureReason = ""
	} else {
		event.FailureReason = b.reason
	}

	if b.details != nil {
		raw, err := json.Marshal(b.details)
		if err != nil {
			return models.AuditEvent{}, fmt.Errorf("audit: serialize details: %w", err)
		}
		if len(raw) > MaxDetailsBytes {
			return models.AuditEvent{}, ErrDetailsTooLarge
		}
		event.Details = raw
	}

	event.ID = uuid.New()
	event.Timestamp = time.Now().UTC()
	return event, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
