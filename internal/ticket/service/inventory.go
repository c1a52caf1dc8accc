package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/observability/metrics"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	"github.com/smallbiznis/eventflow/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	PathFree = "free"
	PathPaid = "paid"
)

type Params struct {
	fx.In

	Log              *zap.Logger
	Tickets          domain.Repository
	Events           eventdomain.Repository
	Registrations    registrationdomain.Repository
	InventoryMetrics *metrics.InventoryMetrics `optional:"true"`
}

// Inventory enforces oversell and capacity rules for ticket tiers.
type Inventory struct {
	log           *zap.Logger
	tickets       domain.Repository
	events        eventdomain.Repository
	registrations registrationdomain.Repository
	metrics       *metrics.InventoryMetrics
}

type ReserveRequest struct {
	EventID  snowflake.ID
	TicketID snowflake.ID
	UserID   snowflake.ID
	Quantity int
}

// Reservation is the locked state a successful check was made against.
type Reservation struct {
	Event  *eventdomain.Event
	Ticket *domain.Ticket
}

func NewInventory(p Params) *Inventory {
	return &Inventory{
		log:           p.Log.Named("ticket.inventory"),
		tickets:       p.Tickets,
		events:        p.Events,
		registrations: p.Registrations,
		metrics:       p.InventoryMetrics,
	}
}

// Reserve runs the reservation checks inside tx. The event and ticket rows are
// locked so that concurrent reservations for the same event serialize until
// tx ends. Nothing is written.
func (inv *Inventory) Reserve(ctx context.Context, tx *gorm.DB, req ReserveRequest) (*Reservation, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	event, err := inv.events.FindByIDForUpdate(ctx, tx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil || !event.AcceptsRegistrations() {
		return nil, domain.ErrEventUnavailable
	}

	ticket, err := inv.tickets.FindForEventForUpdate(ctx, tx, req.EventID, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}

	if !ticket.Fits(req.Quantity) {
		return nil, domain.ErrSoldOut
	}

	if event.Capacity != nil {
		active, err := inv.registrations.CountActive(ctx, tx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("count registrations: %w", err)
		}
		if active+int64(req.Quantity) > int64(*event.Capacity) {
			return nil, domain.ErrAtCapacity
		}
	}

	duplicate, err := inv.registrations.HasActive(ctx, tx, event.ID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if duplicate {
		return nil, domain.ErrDuplicate
	}

	return &Reservation{Event: event, Ticket: ticket}, nil
}

// Commit adds qty to sold, refusing to exceed the tier quantity.
func (inv *Inventory) Commit(ctx context.Context, tx *gorm.DB, ticketID snowflake.ID, qty int) error {
	ok, err := inv.tickets.IncrementSold(ctx, tx, ticketID, qty, true)
	if err != nil {
		return fmt.Errorf("increment sold: %w", err)
	}
	if !ok {
		return domain.ErrSoldOut
	}
	inv.metrics.AddSeatsSold(PathFree, qty)
	return nil
}

// CommitPaid adds qty to sold for a payment that has already been captured.
// The seats are always recorded; oversold reports that the tier quantity was
// exceeded to do so.
func (inv *Inventory) CommitPaid(ctx context.Context, tx *gorm.DB, ticketID snowflake.ID, qty int) (oversold bool, err error) {
	ok, err := inv.tickets.IncrementSold(ctx, tx, ticketID, qty, true)
	if err != nil {
		return false, fmt.Errorf("increment sold: %w", err)
	}
	if !ok {
		ticket, err := inv.tickets.FindByID(ctx, tx, ticketID)
		if err != nil {
			return false, fmt.Errorf("load ticket: %w", err)
		}
		if ticket == nil {
			return false, domain.ErrNotFound
		}
		if _, err := inv.tickets.IncrementSold(ctx, tx, ticketID, qty, false); err != nil {
			return false, fmt.Errorf("increment sold: %w", err)
		}
		oversold = true
		inv.metrics.IncOversell()
		inv.log.Warn("paid confirmation exceeded ticket quantity",
			zap.String("ticket_id", ticketID.String()),
			zap.Int("quantity", qty),
			zap.Int("sold_before", ticket.Sold),
		)
	}
	inv.metrics.AddSeatsSold(PathPaid, qty)
	return oversold, nil
}

// RecordOutcome counts a reservation attempt by path.
func (inv *Inventory) RecordOutcome(path, outcome string) {
	inv.metrics.IncReservation(path, outcome)
}

// RecordTxError counts a failed inventory transaction by database reason.
func (inv *Inventory) RecordTxError(err error) {
	if inv == nil {
		return
	}
	inv.metrics.IncTxError(err)
}
