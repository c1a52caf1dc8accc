package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/clock"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	notificationdomain "github.com/smallbiznis/eventflow/internal/notification/domain"
	notificationservice "github.com/smallbiznis/eventflow/internal/notification/service"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"github.com/smallbiznis/eventflow/internal/providers/email"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketservice "github.com/smallbiznis/eventflow/internal/ticket/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          paymentdomain.Repository
	Registrations registrationdomain.Repository
	Events        eventdomain.Repository
	Inventory     *ticketservice.Inventory
	Notifications notificationdomain.Service
	Clock         clock.Clock
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

// Service records verified checkout events and reconciles them against
// pending registrations.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          paymentdomain.Repository
	registrations registrationdomain.Repository
	events        eventdomain.Repository
	inventory     *ticketservice.Inventory
	notifications notificationdomain.Service
	clock         clock.Clock
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		registrations: p.Registrations,
		events:        p.Events,
		inventory:     p.Inventory,
		notifications: p.Notifications,
		clock:         p.Clock,
		obsMetrics:    p.ObsMetrics,
	}
}

// ProcessEvent stores the event once and applies it. A redelivery of an
// event that was already applied returns ErrEventAlreadyProcessed.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.CheckoutEvent, payload []byte) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now()
	sessionID := event.SessionID
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		SessionID:       &sessionID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return fmt.Errorf("load payment event: %w", err)
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}

	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		_, err = s.Complete(ctx, event, stored.ID)
	case paymentdomain.EventTypeCheckoutExpired:
		_, err = s.Expire(ctx, event, stored.ID)
	default:
		err = paymentdomain.ErrEventIgnored
	}
	return err
}

func validateEvent(event *paymentdomain.CheckoutEvent) error {
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.SessionID = strings.TrimSpace(event.SessionID)
	if event.SessionID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == paymentdomain.EventTypeCheckoutCompleted {
		if event.Metadata == nil || event.Metadata.Quantity <= 0 {
			return paymentdomain.ErrInvalidMetadata
		}
		if event.AmountTotal < 0 {
			return paymentdomain.ErrInvalidEvent
		}
	}
	return nil
}

// Complete confirms the session's pending registrations. Seats, revenue and
// the notification are only applied when a registration actually moved, so a
// repeated delivery changes nothing. recordID, when set, is marked processed
// in the same transaction.
func (s *Service) Complete(ctx context.Context, event *paymentdomain.CheckoutEvent, recordID snowflake.ID) (paymentdomain.ReconcileResult, error) {
	if event == nil || event.Metadata == nil {
		return paymentdomain.ReconcileResult{}, paymentdomain.ErrInvalidMetadata
	}
	meta := *event.Metadata
	log := s.log.With(
		zap.String("session_id", event.SessionID),
		zap.String("event_id", meta.EventID.String()),
		zap.String("ticket_id", meta.TicketID.String()),
	)

	var (
		result  paymentdomain.ReconcileResult
		target  *eventdomain.Event
		emailTo []registrationdomain.Registration
	)
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.registrations.TransitionBySession(ctx, tx, event.SessionID, registrationdomain.StatusPending, registrationdomain.StatusConfirmed, now)
		if err != nil {
			return fmt.Errorf("confirm registrations: %w", err)
		}
		result.Affected = affected

		if affected > 0 {
			oversold, err := s.inventory.CommitPaid(ctx, tx, meta.TicketID, meta.Quantity)
			if err != nil {
				return err
			}
			result.Oversold = oversold

			if err := s.events.AddRevenue(ctx, tx, meta.EventID, float64(event.AmountTotal)/100); err != nil {
				return fmt.Errorf("add revenue: %w", err)
			}

			target, err = s.events.FindByID(ctx, tx, meta.EventID)
			if err != nil {
				return fmt.Errorf("load event: %w", err)
			}
			title, slug := "", ""
			if target != nil {
				title, slug = target.Title, target.Slug
			}
			if _, err := s.notifications.Create(ctx, tx, notificationdomain.CreateRequest{
				UserID:  meta.UserID,
				Type:    notificationdomain.TypePayment,
				Title:   "Payment Confirmed",
				Message: fmt.Sprintf("Your registration for %s is confirmed!", title),
				Link:    notificationservice.EventLink(slug),
			}); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}

			emailTo, err = s.registrations.ListBySession(ctx, tx, event.SessionID)
			if err != nil {
				return fmt.Errorf("load registrations: %w", err)
			}
		}

		return s.markProcessed(ctx, tx, recordID, now)
	})
	if err != nil {
		s.inventory.RecordTxError(err)
		log.Error("checkout completion failed", zap.Error(err))
		return paymentdomain.ReconcileResult{}, err
	}

	if result.Affected == 0 {
		log.Info("checkout completion matched no pending registration")
		return result, nil
	}
	log.Info("checkout completed",
		zap.Int64("confirmed", result.Affected),
		zap.Int64("amount_total", event.AmountTotal),
		zap.Bool("oversold", result.Oversold),
	)

	if target != nil {
		for _, reg := range emailTo {
			if reg.Status != registrationdomain.StatusConfirmed {
				continue
			}
			s.notifications.SendEmail(ctx, notificationdomain.EmailRequest{
				UserID:     reg.UserID,
				Template:   email.TemplatePaymentConfirmed,
				EventTitle: target.Title,
				EventSlug:  target.Slug,
				QRCode:     reg.QRCode,
			})
		}
	}
	return result, nil
}

// Expire cancels the session's pending registrations. Seats were never
// counted for them, so inventory is untouched.
func (s *Service) Expire(ctx context.Context, event *paymentdomain.CheckoutEvent, recordID snowflake.ID) (paymentdomain.ReconcileResult, error) {
	if event == nil || strings.TrimSpace(event.SessionID) == "" {
		return paymentdomain.ReconcileResult{}, paymentdomain.ErrInvalidEvent
	}

	var result paymentdomain.ReconcileResult
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.registrations.TransitionBySession(ctx, tx, event.SessionID, registrationdomain.StatusPending, registrationdomain.StatusCancelled, now)
		if err != nil {
			return fmt.Errorf("cancel registrations: %w", err)
		}
		result.Affected = affected
		return s.markProcessed(ctx, tx, recordID, now)
	})
	if err != nil {
		s.inventory.RecordTxError(err)
		s.log.Error("checkout expiry failed", zap.String("session_id", event.SessionID), zap.Error(err))
		return paymentdomain.ReconcileResult{}, err
	}

	s.log.Info("checkout expired",
		zap.String("session_id", event.SessionID),
		zap.Int64("cancelled", result.Affected),
	)
	return result, nil
}

func (s *Service) markProcessed(ctx context.Context, tx *gorm.DB, id snowflake.ID, now time.Time) error {
	if id == 0 {
		return nil
	}
	if err := s.repo.MarkProcessed(ctx, tx, id, now); err != nil {
		return fmt.Errorf("mark payment event processed: %w", err)
	}
	return nil
}
