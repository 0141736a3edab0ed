package audit

import (
	"context"
	"io"
	"time"

	"gorm.io/gorm"

	"tribune/internal/models"
	"tribune/internal/pagination"
)

// Filter selects audit events on the read paths. Scope is explicit: tenant
// callers set OrgID, platform callers may set AllOrgs instead. The service
// never widens a filter beyond what the caller supplied; deciding who may
// use which scope is the authorization layer's job.
type Filter struct {
	OrgID   string
	AllOrgs bool

	Actions       []models.ActionType
	ResourceTypes []models.ResourceType
	ResourceID    string
	ActorID       string
	Outcome       *models.Outcome

	// Search matches case-insensitively against resource and actor names.
	Search string

	// Half-open range: From inclusive, To exclusive.
	From *time.Time
	To   *time.Time
}

// Servicer defines the contract for the audit read and retention paths.
type Servicer interface {
	Query(ctx context.Context, filter Filter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditEvent], error)
	Export(ctx context.Context, actor Actor, filter Filter, format ExportFormat, w io.Writer) error
	Purge(ctx context.Context, horizon time.Time) (int64, error)
}

// Service implements queries, exports, and retention purges against the
// durable store. Writes it makes about itself (export accesses, purge
// summaries) go through the recorder like any other event.
type Service struct {
	db       *gorm.DB
	recorder *Recorder

	purgeBatchSize int
	purgeMaxBatch  int
}

// ServiceConfig tunes the retention purger's batching.
type ServiceConfig struct {
	PurgeBatchSize int
	PurgeMaxBatch  int
}

// NewService creates an audit read/retention service.
func NewService(db *gorm.DB, recorder *Recorder, cfg ServiceConfig) *Service {
	if cfg.PurgeBatchSize <= 0 {
		cfg.PurgeBatchSize = 500
	}
	if cfg.PurgeMaxBatch <= 0 {
		cfg.PurgeMaxBatch = 1000
	}
	return &Service{
		db:             db,
		recorder:       recorder,
		purgeBatchSize: cfg.PurgeBatchSize,
		purgeMaxBatch:  cfg.PurgeMaxBatch,
	}
}
