package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"tribune/internal/models"
	"tribune/internal/uuid"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewTestEvent builds an unsaved success event scoped to the given org.
// Fixtures set fields directly rather than going through the builder so
// tests can control timestamps.
func NewTestEvent(orgID string) *models.AuditEvent {
	n := nextID()
	event := &models.AuditEvent{
		ID:           uuid.New(),
		Timestamp:    time.Now().UTC(),
		Action:       models.ActionCreated,
		Outcome:      models.OutcomeSuccess,
		ResourceType: models.ResourceProposal,
		ResourceID:   fmt.Sprintf("proposal-%d", n),
		ResourceName: fmt.Sprintf("Test Proposal %d", n),
	}
	if orgID != "" {
		event.OrgID = &orgID
		event.OrgName = "Test Org " + orgID
	}
	return event
}

// CreateTestEvent persists a success event scoped to the given org.
func CreateTestEvent(t *testing.T, db *gorm.DB, orgID string) *models.AuditEvent {
	t.Helper()

	event := NewTestEvent(orgID)
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

// CreateTestEventWithOutcome persists an event with the given outcome.
func CreateTestEventWithOutcome(t *testing.T, db *gorm.DB, orgID string, outcome models.Outcome) *models.AuditEvent {
	t.Helper()

	event := NewTestEvent(orgID)
	event.Outcome = outcome
	if outcome != models.OutcomeSuccess {
		event.FailureReason = "test failure"
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

// CreateTestEventWithActor persists an event performed by the given actor.
func CreateTestEventWithActor(t *testing.T, db *gorm.DB, orgID, actorID, actorName string) *models.AuditEvent {
	t.Helper()

	event := NewTestEvent(orgID)
	event.ActorID = &actorID
	event.ActorName = actorName
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

// CreateTestEventAt persists an event with an explicit timestamp, for
// retention and range tests.
func CreateTestEventAt(t *testing.T, db *gorm.DB, orgID string, ts time.Time) *models.AuditEvent {
	t.Helper()

	event := NewTestEvent(orgID)
	event.Timestamp = ts.UTC()
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

// CreateTestEventWithAction persists an event with the given action type.
func CreateTestEventWithAction(t *testing.T, db *gorm.DB, orgID string, action models.ActionType) *models.AuditEvent {
	t.Helper()

	event := NewTestEvent(orgID)
	event.Action = action
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}
