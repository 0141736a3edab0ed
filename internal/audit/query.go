package audit

import (
	"context"
	"strings"

	"gorm.io/gorm"

	apperrors "tribune/internal/errors"
	"tribune/internal/models"
	"tribune/internal/pagination"
)

// Query returns a page of events matching the filter, newest first with the
// event id as a stable tie-break. Zero matches yield an empty page with
// correct metadata, never an error.
func (s *Service) Query(ctx context.Context, filter Filter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditEvent], error) {
	base, err := s.scoped(ctx, filter)
	if err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var events []models.AuditEvent
	if err := base.Scopes(pagination.Paginate(page)).
		Order("timestamp DESC, id DESC").
		Find(&events).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(events, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// scoped builds the filtered query, enforcing that a scope was supplied.
func (s *Service) scoped(ctx context.Context, filter Filter) (*gorm.DB, error) {
	if !filter.AllOrgs && filter.OrgID == "" {
		return nil, apperrors.ErrOrgScopeRequired
	}

	q := s.db.WithContext(ctx).Model(&models.AuditEvent{})
	if !filter.AllOrgs {
		q = q.Where("org_id = ?", filter.OrgID)
	}
	return applyFilters(q, filter), nil
}

func applyFilters(q *gorm.DB, f Filter) *gorm.DB {
	if len(f.Actions) > 0 {
		q = q.Where("action IN ?", f.Actions)
	}
	if len(f.ResourceTypes) > 0 {
		q = q.Where("resource_type IN ?", f.ResourceTypes)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Outcome != nil {
		q = q.Where("outcome = ?", *f.Outcome)
	}
	if f.Search != "" {
		// LIKE is case-sensitive on Postgres, so fold both sides.
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(resource_name) LIKE ? OR LOWER(actor_name) LIKE ?", pattern, pattern)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}
	return q
}
