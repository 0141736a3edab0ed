package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	apperrors "tribune/internal/errors"
	"tribune/internal/models"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// exportBatchSize bounds how many rows an export holds in memory at once.
const exportBatchSize = 500

// ParseExportFormat converts the wire form to an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatCSV, FormatJSON:
		return ExportFormat(s), nil
	default:
		return "", apperrors.WithMessage(apperrors.ErrInvalidFormat, fmt.Sprintf("Unsupported export format %q", s))
	}
}

// Export streams all events matching the filter to w, fetched in bounded
// keyset batches so the result set never has to fit in memory. The act of
// exporting audit data is itself audited: an Exported record for the
// requesting actor is written synchronously before the first row.
func (s *Service) Export(ctx context.Context, actor Actor, filter Filter, format ExportFormat, w io.Writer) error {
	base, err := s.scoped(ctx, filter)
	if err != nil {
		return err
	}

	s.auditExport(ctx, actor, filter, format)

	switch format {
	case FormatCSV:
		return s.exportCSV(ctx, base, w)
	case FormatJSON:
		return s.exportJSON(ctx, base, w)
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidFormat, fmt.Sprintf("Unsupported export format %q", format))
	}
}

// auditExport records that someone opened an export of the audit trail. This
// bypasses the lossy queue on purpose: losing the record of an export is
// worse than slowing the exporter down by one write.
func (s *Service) auditExport(ctx context.Context, actor Actor, filter Filter, format ExportFormat) {
	scope := filter.OrgID
	if filter.AllOrgs {
		scope = "all"
	}

	builder := NewEvent(models.ActionExported, models.ResourceAuditLog, scope).
		Actor(actor).
		Details(map[string]any{"format": string(format), "all_orgs": filter.AllOrgs})
	if !filter.AllOrgs {
		builder = builder.Org(filter.OrgID, "")
	}

	event, err := builder.Build()
	if err != nil {
		// Unreachable with a fixed action/resource; keep the export usable.
		return
	}
	s.recorder.LogSync(ctx, event)
}

func (s *Service) exportCSV(ctx context.Context, base *gorm.DB, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"id", "timestamp", "actor_id", "actor_name", "origin",
		"action", "outcome", "failure_reason",
		"resource_type", "resource_id", "resource_name",
		"org_id", "org_name", "correlation_id", "details",
	}
	if err := cw.Write(header); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	err := s.eachBatch(ctx, base, func(events []models.AuditEvent) error {
		for i := range events {
			if err := cw.Write(csvRow(&events[i])); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *Service) exportJSON(ctx context.Context, base *gorm.DB, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	first := true
	err := s.eachBatch(ctx, base, func(events []models.AuditEvent) error {
		for i := range events {
			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			first = false
			raw, err := json.Marshal(&events[i])
			if err != nil {
				return err
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// eachBatch walks the filtered result set newest-first in keyset batches.
// Only one batch is resident at a time; ctx cancellation aborts between
// fetches with no side effects.
func (s *Service) eachBatch(ctx context.Context, base *gorm.DB, fn func([]models.AuditEvent) error) error {
	var lastTS time.Time
	var lastID string

	for {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		q := base.Session(&gorm.Session{}).Order("timestamp DESC, id DESC").Limit(exportBatchSize)
		if lastID != "" {
			q = q.Where("timestamp < ? OR (timestamp = ? AND id < ?)", lastTS, lastTS, lastID)
		}

		var events []models.AuditEvent
		if err := q.Find(&events).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(events) == 0 {
			return nil
		}

		if err := fn(events); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		tail := events[len(events)-1]
		lastTS, lastID = tail.Timestamp, tail.ID
		if len(events) < exportBatchSize {
			return nil
		}
	}
}

func csvRow(e *models.AuditEvent) []string {
	actorID := ""
	if e.ActorID != nil {
		actorID = *e.ActorID
	}
	orgID := ""
	if e.OrgID != nil {
		orgID = *e.OrgID
	}
	return []string{
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		actorID,
		e.ActorName,
		e.Origin,
		e.Action.String(),
		e.Outcome.String(),
		e.FailureReason,
		e.ResourceType.String(),
		e.ResourceID,
		e.ResourceName,
		orgID,
		e.OrgName,
		e.CorrelationID,
		string(e.Details),
	}
}
