package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	"github.com/smallbiznis/eventflow/internal/scheduler/guard"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WorkEvent struct {
	ID      snowflake.ID
	Status  eventdomain.Status
	EndDate time.Time
}

type WorkRegistration struct {
	ID        snowflake.ID
	EventID   snowflake.ID
	Status    registrationdomain.Status
	CreatedAt time.Time
}

// CompleteEndedEventsJob marks published events whose end date has passed
// as COMPLETED, one batch per transaction.
func (s *Scheduler) CompleteEndedEventsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCompleteEvents, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var claimed int
		var completed int64
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			events, err := s.claimEndedEvents(ctx, tx, now, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			claimed = len(events)

			ids := make([]snowflake.ID, 0, len(events))
			for _, ev := range events {
				if err := guard.EnsureEventCanComplete(ev.Status, ev.EndDate, now); err != nil {
					continue
				}
				ids = append(ids, ev.ID)
			}
			completed, err = s.markEventsCompleted(ctx, tx, ids, now)
			return err
		})
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.events.complete.failed", JobCompleteEvents, err)
			return err
		}

		run.AddProcessed(int(completed))
		if completed > 0 {
			s.logger(ctx).Info("scheduler.events.completed", zap.Int64("count", completed))
		}
		if claimed < s.cfg.BatchSize || completed == 0 {
			return nil
		}
	}
}

// ExpireStalePendingJob cancels registrations that stayed PENDING past the
// TTL. It backs up the checkout expiry webhook when that delivery is lost.
// Seats are never counted for pending registrations, so inventory is untouched.
func (s *Scheduler) ExpireStalePendingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpirePending, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.PendingTTL)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var claimed int
		var expired int64
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			registrations, err := s.claimStalePending(ctx, tx, cutoff, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			claimed = len(registrations)

			ids := make([]snowflake.ID, 0, len(registrations))
			for _, reg := range registrations {
				if err := guard.EnsurePendingCanExpire(reg.Status, reg.CreatedAt, s.cfg.PendingTTL, now); err != nil {
					continue
				}
				s.logger(ctx).Debug("scheduler.registration.claimed",
					zap.String("registration_id", reg.ID.String()),
					zap.String("event_id", reg.EventID.String()),
				)
				ids = append(ids, reg.ID)
			}
			expired, err = s.markPendingCancelled(ctx, tx, ids, now)
			return err
		})
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.registrations.expire.failed", JobExpirePending, err)
			return err
		}

		run.AddProcessed(int(expired))
		if expired > 0 {
			s.logger(ctx).Info("scheduler.registrations.expired", zap.Int64("count", expired))
		}
		if claimed < s.cfg.BatchSize || expired == 0 {
			return nil
		}
	}
}

func (s *Scheduler) claimEndedEvents(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]WorkEvent, error) {
	var events []WorkEvent
	err := tx.WithContext(ctx).Raw(
		`SELECT id, status, end_date
		 FROM events
		 WHERE status = ? AND end_date <= ?
		 ORDER BY id
		 LIMIT ?`+skipLocked(tx),
		eventdomain.StatusPublished,
		now,
		limit,
	).Scan(&events).Error
	return events, err
}

func (s *Scheduler) claimStalePending(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]WorkRegistration, error) {
	var registrations []WorkRegistration
	err := tx.WithContext(ctx).Raw(
		`SELECT id, event_id, status, created_at
		 FROM registrations
		 WHERE status = ? AND created_at <= ?
		 ORDER BY id
		 LIMIT ?`+skipLocked(tx),
		registrationdomain.StatusPending,
		cutoff,
		limit,
	).Scan(&registrations).Error
	return registrations, err
}

func (s *Scheduler) markEventsCompleted(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE events
		 SET status = ?, updated_at = ?
		 WHERE id IN ? AND status = ?`,
		eventdomain.StatusCompleted,
		now,
		ids,
		eventdomain.StatusPublished,
	)
	return res.RowsAffected, res.Error
}

func (s *Scheduler) markPendingCancelled(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE registrations
		 SET status = ?, updated_at = ?
		 WHERE id IN ? AND status = ?`,
		registrationdomain.StatusCancelled,
		now,
		ids,
		registrationdomain.StatusPending,
	)
	return res.RowsAffected, res.Error
}

// skipLocked lets concurrent instances claim disjoint batches on postgres.
func skipLocked(tx *gorm.DB) string {
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}
