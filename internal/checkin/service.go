// Package checkin validates attendee QR codes at the door.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/clock"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	"github.com/smallbiznis/eventflow/internal/observability/tracing"
	"github.com/smallbiznis/eventflow/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrCodeRequired = errors.New("qr_code_required")

const (
	OutcomeCheckedIn        = "checked_in"
	OutcomeNotFound         = "not_found"
	OutcomeCancelled        = "cancelled"
	OutcomeNotConfirmed     = "not_confirmed"
	OutcomeAlreadyCheckedIn = "already_checked_in"
	OutcomeError            = "error"
)

// Rejection is a scan that matched a registration which cannot be admitted.
// CheckedInAt is only set for repeated scans.
type Rejection struct {
	Err          error
	Registration *registrationdomain.Attendee
	CheckedInAt  *time.Time
}

func (r *Rejection) Error() string { return r.Err.Error() }

func (r *Rejection) Unwrap() error { return r.Err }

type Result struct {
	Success      bool                         `json:"success"`
	Message      string                       `json:"message"`
	Registration *registrationdomain.Attendee `json:"registration"`
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Registrations registrationdomain.Repository
	Events        eventdomain.Repository
	Authz         authorization.Service
	Limiter       *ratelimit.Limiter `optional:"true"`
	Clock         clock.Clock
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	registrations registrationdomain.Repository
	events        eventdomain.Repository
	authz         authorization.Service
	limiter       *ratelimit.Limiter
	clock         clock.Clock
	obsMetrics    *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("checkin.service"),
		registrations: p.Registrations,
		events:        p.Events,
		authz:         p.Authz,
		limiter:       p.Limiter,
		clock:         p.Clock,
		obsMetrics:    p.ObsMetrics,
	}
}

// CheckIn admits the registration identified by code. The first failing rule
// wins: unknown code, cancelled, not confirmed, already checked in.
func (s *Service) CheckIn(ctx context.Context, principal identity.Principal, eventID snowflake.ID, code string) (*Result, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	event, err := s.events.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, eventdomain.ErrNotFound
	}
	if err := s.authz.Authorize(ctx, principal, eventID, authorization.ObjectCheckin, authorization.ActionCheckinScan); err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}

	ctx, span := tracing.StartSpan(ctx, "checkin.scan", attribute.String("event_id", eventID.String()))
	defer span.End()

	release, err := s.limiter.LockScan(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, ratelimit.ErrScanInProgress) {
			return nil, err
		}
		// The conditional update still admits each registration once.
		s.log.Warn("scan lock unavailable", zap.Error(err))
	}
	defer release()

	result, err := s.admit(ctx, eventID, code)
	s.record(ctx, err)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return nil, err
	}
	return result, nil
}

func (s *Service) admit(ctx context.Context, eventID snowflake.ID, code string) (*Result, error) {
	reg, err := s.lookup(ctx, eventID, code)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registrationdomain.ErrNotFound
	}

	change, err := registrationdomain.Transition(*reg, registrationdomain.ActionCheckIn)
	if err != nil {
		return nil, s.reject(ctx, reg, err)
	}

	affected, err := s.registrations.ApplyChange(ctx, s.db, reg.ID, change, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race to another scan: re-read and report what it did.
		fresh, err := s.registrations.FindByID(ctx, s.db, reg.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, registrationdomain.ErrNotFound
		}
		if _, err := registrationdomain.Transition(*fresh, registrationdomain.ActionCheckIn); err != nil {
			return nil, s.reject(ctx, fresh, err)
		}
		return nil, fmt.Errorf("check in %s: no rows updated", reg.ID)
	}

	attendee, err := s.registrations.FindAttendee(ctx, s.db, reg.ID)
	if err != nil {
		return nil, err
	}
	if attendee == nil {
		return nil, registrationdomain.ErrNotFound
	}

	s.log.Info("attendee checked in",
		zap.String("event_id", eventID.String()),
		zap.String("registration_id", reg.ID.String()),
	)
	return &Result{
		Success:      true,
		Message:      fmt.Sprintf("%s checked in!", displayName(attendee)),
		Registration: attendee,
	}, nil
}

// lookup matches the exact code first and falls back to the attendee's email.
func (s *Service) lookup(ctx context.Context, eventID snowflake.ID, code string) (*registrationdomain.Registration, error) {
	reg, err := s.registrations.FindByQRCode(ctx, s.db, eventID, code)
	if err != nil || reg != nil {
		return reg, err
	}
	if !strings.Contains(code, "@") {
		return nil, nil
	}
	return s.registrations.FindByEmail(ctx, s.db, eventID, code)
}

func (s *Service) reject(ctx context.Context, reg *registrationdomain.Registration, cause error) error {
	rejection := &Rejection{Err: cause}
	if errors.Is(cause, registrationdomain.ErrAlreadyCheckedIn) {
		rejection.CheckedInAt = reg.CheckedInAt
	}
	attendee, err := s.registrations.FindAttendee(ctx, s.db, reg.ID)
	if err != nil {
		return err
	}
	rejection.Registration = attendee
	return rejection
}

func (s *Service) record(ctx context.Context, err error) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordCheckIn(ctx, OutcomeFor(err))
}

func OutcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeCheckedIn
	case errors.Is(err, registrationdomain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, registrationdomain.ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, registrationdomain.ErrNotConfirmed):
		return OutcomeNotConfirmed
	case errors.Is(err, registrationdomain.ErrAlreadyCheckedIn):
		return OutcomeAlreadyCheckedIn
	}
	return OutcomeError
}

func displayName(a *registrationdomain.Attendee) string {
	if name := strings.TrimSpace(a.UserName); name != "" {
		return name
	}
	return a.UserEmail
}
