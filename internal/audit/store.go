package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tribune/internal/models"
)

// Store is the append side of the durable event store. The recorder depends
// on this narrow interface so tests can inject synchronous or failing
// doubles without a database.
type Store interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// GormStore appends events through a GORM connection. The connection's
// pooling and lifecycle are owned by the database manager, not here.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by the given connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Append inserts one event row. Events are independent, so no transaction
// spans more than this single insert.
func (s *GormStore) Append(ctx context.Context, event *models.AuditEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
