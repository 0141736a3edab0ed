package audit

import (
	"context"
	"sync"
	"time"

	apperrors "tribune/internal/errors"
	"tribune/internal/logger"
	"tribune/internal/models"
)

// Purge deletes every event with timestamp strictly before the horizon, in
// fixed-size batches so no single statement locks the whole table. It stops
// when no qualifying rows remain or the per-run batch cap trips, and returns
// the number of rows deleted either way.
//
// Each committed batch stays deleted even if a later batch fails. There is
// no rollback, the next scheduled run simply resumes. A run that deletes
// nothing emits no summary, which makes an immediate second run a no-op.
func (s *Service) Purge(ctx context.Context, horizon time.Time) (int64, error) {
	var deleted int64
	capped := false

	for batch := 0; ; batch++ {
		if batch >= s.purgeMaxBatch {
			capped = true
			break
		}
		if err := ctx.Err(); err != nil {
			if deleted > 0 {
				s.auditPurge(ctx, deleted, horizon, capped)
			}
			return deleted, apperrors.Wrap(apperrors.ErrPurgeFailed, err)
		}

		// DELETE ... LIMIT is not portable, so each batch targets ids from a
		// bounded subquery instead.
		ids := s.db.WithContext(ctx).
			Model(&models.AuditEvent{}).
			Select("id").
			Where("timestamp < ?", horizon).
			Limit(s.purgeBatchSize)

		res := s.db.WithContext(ctx).
			Where("id IN (?)", ids).
			Delete(&models.AuditEvent{})
		if res.Error != nil {
			if deleted > 0 {
				s.auditPurge(ctx, deleted, horizon, capped)
			}
			return deleted, apperrors.Wrap(apperrors.ErrPurgeFailed, res.Error)
		}

		deleted += res.RowsAffected
		if res.RowsAffected < int64(s.purgeBatchSize) {
			break
		}
	}

	if deleted > 0 || capped {
		s.auditPurge(ctx, deleted, horizon, capped)
	}
	return deleted, nil
}

// auditPurge writes the run summary. The purger audits itself: the summary is
// the only durable trace of an irreversible bulk deletion.
func (s *Service) auditPurge(ctx context.Context, deleted int64, horizon time.Time, capped bool) {
	// No org scope: retention is platform-wide.
	event, err := NewEvent(models.ActionAdminDataCleanup, models.ResourceAuditLog, "retention").
		Details(map[string]any{
			"deleted": deleted,
			"horizon": horizon.UTC().Format(time.RFC3339),
			"capped":  capped,
		}).
		Build()
	if err != nil {
		return
	}
	// The summary must still be written when the run itself was cancelled.
	s.recorder.LogSync(context.WithoutCancel(ctx), event)
}

// RetentionScheduler runs Purge on a fixed interval on its own background
// goroutine. A failed run is logged and retried on the next tick; no
// watermark is kept between runs.
type RetentionScheduler struct {
	svc       Servicer
	retention time.Duration
	interval  time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRetentionScheduler creates a stopped scheduler.
func NewRetentionScheduler(svc Servicer, retention, interval time.Duration) *RetentionScheduler {
	return &RetentionScheduler{
		svc:       svc,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start launches the purge loop.
func (rs *RetentionScheduler) Start() {
	rs.wg.Add(1)
	go rs.run()
}

// Stop halts the loop. An in-flight run finishes its current batch first.
func (rs *RetentionScheduler) Stop() {
	rs.closeOnce.Do(func() {
		close(rs.done)
		rs.wg.Wait()
	})
}

func (rs *RetentionScheduler) run() {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			horizon := time.Now().UTC().Add(-rs.retention)
			deleted, err := rs.svc.Purge(context.Background(), horizon)
			if err != nil {
				logger.Get().Errorw("retention purge failed",
					"error", err,
					"deleted_before_failure", deleted,
					"horizon", horizon,
				)
				continue
			}
			if deleted > 0 {
				logger.Get().Infow("retention purge completed",
					"deleted", deleted,
					"horizon", horizon,
				)
			}
		case <-rs.done:
			return
		}
	}
}
