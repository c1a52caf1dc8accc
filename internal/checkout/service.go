// Package checkout turns a registration request into either a confirmed
// free registration or a pending paid one backed by a hosted checkout session.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/identity"
	notificationdomain "github.com/smallbiznis/eventflow/internal/notification/domain"
	notificationservice "github.com/smallbiznis/eventflow/internal/notification/service"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	"github.com/smallbiznis/eventflow/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"github.com/smallbiznis/eventflow/internal/providers/email"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	ticketservice "github.com/smallbiznis/eventflow/internal/ticket/service"
	"github.com/smallbiznis/eventflow/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Inventory      *ticketservice.Inventory
	Registrations  registrationdomain.Repository
	Notifications  notificationdomain.Service
	Payments       paymentdomain.CheckoutClient
	CheckoutConfig *config.CheckoutConfigHolder
	Cfg            config.Config
	Clock          clock.Clock
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	inventory     *ticketservice.Inventory
	registrations registrationdomain.Repository
	notifications notificationdomain.Service
	payments      paymentdomain.CheckoutClient
	checkoutCfg   *config.CheckoutConfigHolder
	appURL        string
	clock         clock.Clock
	obsMetrics    *obsmetrics.Metrics
}

type RegisterRequest struct {
	EventID  snowflake.ID
	TicketID snowflake.ID
	Quantity int
}

type Result struct {
	Registration *registrationdomain.Registration `json:"registration"`
	CheckoutURL  string                           `json:"checkoutUrl,omitempty"`
}

func New(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("checkout.service"),
		genID:         p.GenID,
		inventory:     p.Inventory,
		registrations: p.Registrations,
		notifications: p.Notifications,
		payments:      p.Payments,
		checkoutCfg:   p.CheckoutConfig,
		appURL:        p.Cfg.AppURL,
		clock:         p.Clock,
		obsMetrics:    p.ObsMetrics,
	}
}

// Register reserves inventory for principal. Free tickets are confirmed in a
// single transaction. Paid tickets get a checkout session first and a
// PENDING registration only once the session exists.
func (s *Service) Register(ctx context.Context, principal identity.Principal, req RegisterRequest) (*Result, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	cfg := s.checkoutCfg.Get()
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || (cfg.MaxQuantity > 0 && req.Quantity > cfg.MaxQuantity) {
		return nil, ticketdomain.ErrInvalidQuantity
	}

	ctx, span := tracing.StartSpan(ctx, "checkout.register",
		attribute.String("event_id", req.EventID.String()),
		attribute.String("ticket_id", req.TicketID.String()),
		attribute.Int("quantity", req.Quantity),
	)
	defer span.End()

	log := s.log.With(
		zap.String("event_id", req.EventID.String()),
		zap.String("ticket_id", req.TicketID.String()),
		zap.String("user_id", principal.UserID.String()),
	)

	var (
		reservation *ticketservice.Reservation
		created     *registrationdomain.Registration
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		reservation, err = s.inventory.Reserve(ctx, tx, ticketservice.ReserveRequest{
			EventID:  req.EventID,
			TicketID: req.TicketID,
			UserID:   principal.UserID,
			Quantity: req.Quantity,
		})
		if err != nil {
			return err
		}
		if !reservation.Ticket.IsFree() {
			return nil
		}

		if err := s.inventory.Commit(ctx, tx, reservation.Ticket.ID, req.Quantity); err != nil {
			return err
		}
		created = s.newRegistration(principal.UserID, reservation, req.Quantity, registrationdomain.StatusConfirmed, nil)
		if err := s.registrations.Insert(ctx, tx, created); err != nil {
			return s.mapInsertErr(err)
		}
		_, err = s.notifications.Create(ctx, tx, notificationdomain.CreateRequest{
			UserID:  principal.UserID,
			Type:    notificationdomain.TypeRegistration,
			Title:   "Registration Confirmed",
			Message: fmt.Sprintf("You're registered for %s!", reservation.Event.Title),
			Link:    notificationservice.EventLink(reservation.Event.Slug),
		})
		return err
	})
	if err != nil {
		s.recordRejection(ctx, reservation, err)
		span.RecordError(tracing.SafeError(err))
		if !isBusinessRejection(err) {
			s.inventory.RecordTxError(err)
			log.Error("registration failed", zap.Error(err))
		}
		return nil, err
	}

	if created != nil {
		s.record(ctx, ticketservice.PathFree, obsmetrics.ReservationOutcomeConfirmed)
		log.Info("free registration confirmed", zap.String("registration_id", created.ID.String()))
		s.notifications.SendEmail(ctx, notificationdomain.EmailRequest{
			UserID:     principal.UserID,
			Template:   email.TemplateRegistrationConfirmed,
			EventTitle: reservation.Event.Title,
			EventSlug:  reservation.Event.Slug,
			QRCode:     created.QRCode,
		})
		return &Result{Registration: created}, nil
	}

	return s.registerPaid(ctx, log, principal, reservation, req.Quantity, cfg)
}

func (s *Service) registerPaid(
	ctx context.Context,
	log *zap.Logger,
	principal identity.Principal,
	reservation *ticketservice.Reservation,
	quantity int,
	cfg config.CheckoutConfig,
) (*Result, error) {
	event, ticket := reservation.Event, reservation.Ticket
	session, err := s.payments.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionRequest{
		Metadata: paymentdomain.CheckoutMetadata{
			EventID:  event.ID,
			TicketID: ticket.ID,
			UserID:   principal.UserID,
			Quantity: quantity,
		},
		CustomerEmail:  principal.Email,
		ProductName:    fmt.Sprintf("%s - %s", event.Title, ticket.Name),
		UnitAmount:     ticket.UnitAmountMinor(),
		Currency:       cfg.Currency,
		SuccessURL:     cfg.CheckoutURL(cfg.SuccessURL, s.appURL, event.Slug),
		CancelURL:      cfg.CheckoutURL(cfg.CancelURL, s.appURL, event.Slug),
		IdempotencyKey: IdempotencyKey(event.ID, principal.UserID),
	})
	if err != nil {
		s.record(ctx, ticketservice.PathPaid, obsmetrics.ReservationOutcomeError)
		log.Error("create checkout session failed", zap.Error(err))
		return nil, err
	}

	sessionID := session.ID
	created := s.newRegistration(principal.UserID, reservation, quantity, registrationdomain.StatusPending, &sessionID)
	if err := s.registrations.Insert(ctx, s.db, created); err != nil {
		err = s.mapInsertErr(err)
		s.recordRejection(ctx, reservation, err)
		log.Warn("pending registration not written, checkout session left to expire",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.record(ctx, ticketservice.PathPaid, obsmetrics.ReservationOutcomePending)
	log.Info("paid registration pending",
		zap.String("registration_id", created.ID.String()),
		zap.String("session_id", session.ID),
	)
	return &Result{Registration: created, CheckoutURL: session.URL}, nil
}

// IdempotencyKey is unique per attempt so a retried request opens a fresh session.
func IdempotencyKey(eventID, userID snowflake.ID) string {
	return fmt.Sprintf("eventflow-checkout-%s-%s-%s", eventID, userID, ulid.Make())
}

func (s *Service) newRegistration(
	userID snowflake.ID,
	reservation *ticketservice.Reservation,
	quantity int,
	status registrationdomain.Status,
	sessionID *string,
) *registrationdomain.Registration {
	now := s.clock.Now()
	ticketID := reservation.Ticket.ID
	return &registrationdomain.Registration{
		ID:              s.genID.Generate(),
		EventID:         reservation.Event.ID,
		UserID:          userID,
		TicketID:        &ticketID,
		Quantity:        quantity,
		Status:          status,
		QRCode:          ulid.Make().String(),
		StripePaymentID: sessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// mapInsertErr turns the active-registration unique index into ErrDuplicate.
func (s *Service) mapInsertErr(err error) error {
	if db.IsDuplicateKeyErr(err) {
		return ticketdomain.ErrDuplicate
	}
	return fmt.Errorf("insert registration: %w", err)
}

func (s *Service) recordRejection(ctx context.Context, reservation *ticketservice.Reservation, err error) {
	path := ticketservice.PathFree
	if reservation != nil && !reservation.Ticket.IsFree() {
		path = ticketservice.PathPaid
	}
	s.record(ctx, path, outcomeFor(err))
}

func (s *Service) record(ctx context.Context, path, outcome string) {
	s.inventory.RecordOutcome(path, outcome)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRegistration(ctx, path, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ticketdomain.ErrSoldOut):
		return obsmetrics.ReservationOutcomeSoldOut
	case errors.Is(err, ticketdomain.ErrAtCapacity):
		return obsmetrics.ReservationOutcomeAtCapacity
	case errors.Is(err, ticketdomain.ErrDuplicate):
		return obsmetrics.ReservationOutcomeDuplicate
	case errors.Is(err, ticketdomain.ErrNotFound), errors.Is(err, ticketdomain.ErrEventUnavailable):
		return obsmetrics.ReservationOutcomeNotFound
	}
	return obsmetrics.ReservationOutcomeError
}

func isBusinessRejection(err error) bool {
	return outcomeFor(err) != obsmetrics.ReservationOutcomeError || errors.Is(err, ticketdomain.ErrInvalidQuantity)
}
