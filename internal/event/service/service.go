package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/cache"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	"github.com/smallbiznis/eventflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 50

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Tickets        ticketdomain.Repository
	Registrations  registrationdomain.Repository
	Authz          authorization.Service
	Clock          clock.Clock
	CheckoutConfig *config.CheckoutConfigHolder
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	tickets       ticketdomain.Repository
	registrations registrationdomain.Repository
	authz         authorization.Service
	clock         clock.Clock
	checkoutCfg   *config.CheckoutConfigHolder
	public        *cache.TTLCache[string, *domain.Detail]
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("event.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		tickets:       p.Tickets,
		registrations: p.Registrations,
		authz:         p.Authz,
		clock:         p.Clock,
		checkoutCfg:   p.CheckoutConfig,
		public:        cache.NewTTLCache[string, *domain.Detail](cache.WithNow(p.Clock.Now)),
	}
}

func (s *Service) Create(ctx context.Context, principal identity.Principal, req domain.CreateRequest) (*domain.Detail, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if len([]rune(req.Title)) < 3 {
		return nil, domain.ErrInvalidTitle
	}
	if req.Status == "" {
		req.Status = domain.StatusDraft
	}
	if req.Status != domain.StatusDraft && req.Status != domain.StatusPublished {
		return nil, domain.ErrInvalidStatus
	}
	if err := validateSchedule(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if req.Capacity != nil && *req.Capacity <= 0 {
		return nil, domain.ErrInvalidCapacity
	}
	for _, t := range req.Tickets {
		if err := validateTicket(t); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	event := &domain.Event{
		ID:          s.genID.Generate(),
		OrganizerID: principal.UserID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Timezone:    req.Timezone,
		Location:    blankToNil(req.Location),
		IsVirtual:   req.IsVirtual,
		MeetingURL:  blankToNil(req.MeetingURL),
		Capacity:    req.Capacity,
		Status:      req.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tickets := make([]ticketdomain.Ticket, 0, len(req.Tickets))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eventSlug, err := s.uniqueSlug(ctx, tx, req.Title)
		if err != nil {
			return err
		}
		event.Slug = eventSlug
		if err := s.repo.Insert(ctx, tx, event); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, input := range req.Tickets {
			ticket := ticketdomain.Ticket{
				ID:          s.genID.Generate(),
				EventID:     event.ID,
				Name:        strings.TrimSpace(input.Name),
				Description: blankToNil(input.Description),
				Price:       input.Price,
				Quantity:    input.Quantity,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.tickets.Insert(ctx, tx, &ticket); err != nil {
				return fmt.Errorf("insert ticket: %w", err)
			}
			tickets = append(tickets, ticket)
		}
		return s.repo.InsertAnalytics(ctx, tx, &domain.Analytics{EventID: event.ID, UpdatedAt: now})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("slug", event.Slug),
		zap.Int("tickets", len(tickets)),
	)
	return &domain.Detail{Event: *event, Tickets: tickets}, nil
}

func (s *Service) List(ctx context.Context, principal identity.Principal, req domain.ListRequest) (*domain.ListResponse, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	page := req.Pagination.Normalize()

	events, total, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrganizerID: principal.UserID,
		Status:      req.Status,
		Search:      req.Search,
		Limit:       page.Limit,
		Offset:      page.Offset(),
	})
	if err != nil {
		return nil, err
	}
	details, err := s.hydrate(ctx, events)
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{
		Events:     details,
		Pagination: pagination.BuildPageInfo(page, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Detail, error) {
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return s.detail(ctx, event)
}

func (s *Service) Update(ctx context.Context, principal identity.Principal, id snowflake.ID, req domain.UpdateRequest) (*domain.Detail, error) {
	event, err := s.owned(ctx, principal, id, authorization.ActionEventUpdate)
	if err != nil {
		return nil, err
	}
	previousSlug := event.Slug

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if len([]rune(title)) < 3 {
			return nil, domain.ErrInvalidTitle
		}
		event.Title = title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.StartDate != nil {
		event.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		event.EndDate = *req.EndDate
	}
	if req.Timezone != nil {
		event.Timezone = *req.Timezone
	}
	if req.Location != nil {
		event.Location = blankToNil(req.Location)
	}
	if req.IsVirtual != nil {
		event.IsVirtual = *req.IsVirtual
	}
	if req.MeetingURL != nil {
		event.MeetingURL = blankToNil(req.MeetingURL)
	}
	if req.Capacity != nil {
		switch {
		case *req.Capacity < 0:
			return nil, domain.ErrInvalidCapacity
		case *req.Capacity == 0:
			event.Capacity = nil
		default:
			capacity := *req.Capacity
			event.Capacity = &capacity
		}
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		event.Status = *req.Status
	}
	if err := validateSchedule(event.StartDate, event.EndDate); err != nil {
		return nil, err
	}

	event.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	s.public.Delete(previousSlug)

	s.log.Info("event updated", zap.String("event_id", id.String()), zap.String("status", string(event.Status)))
	return s.detail(ctx, event)
}

// Delete removes an event with its tickets and analytics. Events that have
// any registration are kept.
func (s *Service) Delete(ctx context.Context, principal identity.Principal, id snowflake.ID) error {
	event, err := s.owned(ctx, principal, id, authorization.ActionEventDelete)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		has, err := s.registrations.ExistsForEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if has {
			return domain.ErrHasRegistrations
		}
		if err := s.tickets.DeleteByEvent(ctx, tx, id); err != nil {
			return err
		}
		if err := s.repo.DeleteAnalytics(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.public.Delete(event.Slug)
	if err := s.authz.RevokeEvent(ctx, id); err != nil {
		s.log.Warn("revoke event roles failed", zap.String("event_id", id.String()), zap.Error(err))
	}
	s.log.Info("event deleted", zap.String("event_id", id.String()))
	return nil
}

func (s *Service) GetPublic(ctx context.Context, eventSlug string) (*domain.Detail, error) {
	eventSlug = strings.TrimSpace(eventSlug)
	if eventSlug == "" {
		return nil, domain.ErrNotFound
	}

	detail, ok := s.public.Get(eventSlug)
	if !ok {
		event, err := s.repo.FindBySlug(ctx, s.db, eventSlug)
		if err != nil {
			return nil, err
		}
		if event == nil || event.Status == domain.StatusDraft {
			return nil, domain.ErrNotFound
		}
		detail, err = s.detail(ctx, event)
		if err != nil {
			return nil, err
		}
		s.public.Set(eventSlug, detail, s.checkoutCfg.Get().PublicEventTTL)
	}

	if err := s.repo.IncrementPageViews(ctx, s.db, detail.ID); err != nil {
		s.log.Debug("page view not counted", zap.String("event_id", detail.ID.String()), zap.Error(err))
	}
	return detail, nil
}

func (s *Service) owned(ctx context.Context, principal identity.Principal, id snowflake.ID, action string) (*domain.Event, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.authz.Authorize(ctx, principal, id, authorization.ObjectEvent, action); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) detail(ctx context.Context, event *domain.Event) (*domain.Detail, error) {
	details, err := s.hydrate(ctx, []domain.Event{*event})
	if err != nil {
		return nil, err
	}
	detail := details[0]
	organizer, err := s.repo.FindOrganizer(ctx, s.db, event.OrganizerID)
	if err != nil {
		return nil, err
	}
	detail.Organizer = organizer
	return &detail, nil
}

// hydrate attaches tickets and registration counts to events.
func (s *Service) hydrate(ctx context.Context, events []domain.Event) ([]domain.Detail, error) {
	details := make([]domain.Detail, 0, len(events))
	if len(events) == 0 {
		return details, nil
	}
	ids := make([]snowflake.ID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	tickets, err := s.tickets.ListByEvents(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byEvent := make(map[snowflake.ID][]ticketdomain.Ticket, len(events))
	for _, t := range tickets {
		byEvent[t.EventID] = append(byEvent[t.EventID], t)
	}
	counts, err := s.registrations.CountByEvents(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		eventTickets := byEvent[e.ID]
		if eventTickets == nil {
			eventTickets = []ticketdomain.Ticket{}
		}
		details = append(details, domain.Detail{
			Event:             e,
			Tickets:           eventTickets,
			RegistrationCount: counts[e.ID],
		})
	}
	return details, nil
}

// uniqueSlug appends -2, -3, ... until the slug is free.
func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "event"
	}
	candidate := base
	for attempt := 2; attempt <= maxSlugAttempts+1; attempt++ {
		exists, err := s.repo.SlugExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", domain.ErrSlugExhausted
}

func validateSchedule(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return domain.ErrInvalidSchedule
	}
	return nil
}

func validateTicket(t domain.TicketInput) error {
	if strings.TrimSpace(t.Name) == "" || t.Price < 0 {
		return domain.ErrInvalidTicket
	}
	if t.Quantity != nil && *t.Quantity <= 0 {
		return domain.ErrInvalidTicket
	}
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
