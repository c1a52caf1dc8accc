package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/clock"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	"github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketservice "github.com/smallbiznis/eventflow/internal/ticket/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Events    eventdomain.Repository
	Inventory *ticketservice.Inventory
	Authz     authorization.Service
	Clock     clock.Clock
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	events    eventdomain.Repository
	inventory *ticketservice.Inventory
	authz     authorization.Service
	clock     clock.Clock
}

type AttendeeList struct {
	Registrations []domain.Attendee `json:"registrations"`
	Stats         domain.Stats      `json:"stats"`
}

func New(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("registration.service"),
		repo:      p.Repo,
		events:    p.Events,
		inventory: p.Inventory,
		authz:     p.Authz,
		clock:     p.Clock,
	}
}

// ListMine returns the caller's registrations, newest first.
func (s *Service) ListMine(ctx context.Context, principal identity.Principal) ([]domain.Owned, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByUser(ctx, s.db, principal.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Owned{}
	}
	return items, nil
}

// ListAttendees returns the filtered attendee list. Stats.Total counts the
// filtered rows while the remaining stats describe the whole event.
func (s *Service) ListAttendees(ctx context.Context, principal identity.Principal, eventID snowflake.ID, filter domain.AttendeeFilter) (*AttendeeList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidFilter
	}
	if err := s.authorize(ctx, principal, eventID, authorization.ActionAttendeeView); err != nil {
		return nil, err
	}

	items, err := s.repo.ListAttendees(ctx, s.db, eventID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Attendee{}
	}
	stats, err := s.repo.Stats(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	stats.Total = int64(len(items))
	return &AttendeeList{Registrations: items, Stats: stats}, nil
}

// ApplyAction runs an organizer command through the transition table.
// Confirming a pending paid registration commits its seats in the same
// transaction.
func (s *Service) ApplyAction(ctx context.Context, principal identity.Principal, eventID, registrationID snowflake.ID, action domain.Action) (*domain.Registration, error) {
	if _, err := domain.ParseAction(string(action)); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, eventID, authorization.ActionAttendeeManage); err != nil {
		return nil, err
	}

	var updated *domain.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := s.repo.FindByID(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if reg == nil || reg.EventID != eventID {
			return domain.ErrNotFound
		}

		change, err := domain.Transition(*reg, action)
		if err != nil {
			return err
		}
		affected, err := s.repo.ApplyChange(ctx, tx, reg.ID, change, s.clock.Now())
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: registration changed concurrently", domain.ErrInvalidTransition)
		}
		if change.CommitInventory && reg.TicketID != nil {
			if err := s.inventory.Commit(ctx, tx, *reg.TicketID, reg.Quantity); err != nil {
				return err
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, reg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("registration action applied",
		zap.String("event_id", eventID.String()),
		zap.String("registration_id", registrationID.String()),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// TicketFor returns a confirmed registration owned by principal together with
// its event and ticket summary.
func (s *Service) TicketFor(ctx context.Context, principal identity.Principal, registrationID snowflake.ID) (*domain.Owned, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	item, err := s.repo.FindOwned(ctx, s.db, registrationID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.UserID != principal.UserID {
		return nil, domain.ErrNotFound
	}
	if item.Status != domain.StatusConfirmed {
		return nil, domain.ErrNotConfirmed
	}
	return item, nil
}

func (s *Service) authorize(ctx context.Context, principal identity.Principal, eventID snowflake.ID, action string) error {
	if err := principal.Require(); err != nil {
		return err
	}
	event, err := s.events.FindByID(ctx, s.db, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return eventdomain.ErrNotFound
	}
	return s.authz.Authorize(ctx, principal, eventID, authorization.ObjectAttendee, action)
}
