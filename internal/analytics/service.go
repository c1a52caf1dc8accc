// Package analytics builds the organizer's per-event report and dashboard.
package analytics

import (
	"context"
	"math"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/clock"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const upcomingLimit = 5

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Events        eventdomain.Repository
	Tickets       ticketdomain.Repository
	Registrations registrationdomain.Repository
	Authz         authorization.Service
	Clock         clock.Clock
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	events        eventdomain.Repository
	tickets       ticketdomain.Repository
	registrations registrationdomain.Repository
	authz         authorization.Service
	clock         clock.Clock
}

type Overview struct {
	TotalRegistrations     int     `json:"totalRegistrations"`
	ConfirmedRegistrations int     `json:"confirmedRegistrations"`
	CheckedIn              int     `json:"checkedIn"`
	TotalRevenue           float64 `json:"totalRevenue"`
	Capacity               *int    `json:"capacity"`
	ConversionRate         string  `json:"conversionRate"`
	PageViews              int64   `json:"pageViews"`
	CheckInRate            string  `json:"checkInRate"`
}

type TicketBreakdown struct {
	Name    string  `json:"name"`
	Sold    int     `json:"sold"`
	Total   *int    `json:"total"`
	Revenue float64 `json:"revenue"`
	Price   float64 `json:"price"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DayAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type Report struct {
	Overview          Overview          `json:"overview"`
	TicketBreakdown   []TicketBreakdown `json:"ticketBreakdown"`
	RegistrationTrend []DayCount        `json:"registrationTrend"`
	RevenueTrend      []DayAmount       `json:"revenueTrend"`
}

type UpcomingEvent struct {
	eventdomain.Event
	RegistrationCount int64 `json:"registrationCount"`
}

type Dashboard struct {
	TotalEvents        int64           `json:"totalEvents"`
	UpcomingEvents     []UpcomingEvent `json:"upcomingEvents"`
	TotalRegistrations int64           `json:"totalRegistrations"`
	TotalRevenue       float64         `json:"totalRevenue"`
}

func New(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("analytics.service"),
		events:        p.Events,
		tickets:       p.Tickets,
		registrations: p.Registrations,
		authz:         p.Authz,
		clock:         p.Clock,
	}
}

// EventReport summarizes one event for its organizer. Revenue counts
// confirmed registrations at their ticket price times quantity.
func (s *Service) EventReport(ctx context.Context, principal identity.Principal, eventID snowflake.ID) (*Report, error) {
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
	if err := s.authz.Authorize(ctx, principal, eventID, authorization.ObjectAnalytics, authorization.ActionAnalyticsView); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.ListByEvent(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	registrations, err := s.registrations.ListByEvent(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	stats, err := s.events.FindAnalytics(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}

	prices := make(map[snowflake.ID]float64, len(tickets))
	breakdown := make([]TicketBreakdown, 0, len(tickets))
	for _, t := range tickets {
		prices[t.ID] = t.Price
		breakdown = append(breakdown, TicketBreakdown{
			Name:    t.Name,
			Sold:    t.Sold,
			Total:   t.Quantity,
			Revenue: roundCents(float64(t.Sold) * t.Price),
			Price:   t.Price,
		})
	}

	overview := Overview{Capacity: event.Capacity}
	if stats != nil {
		overview.PageViews = stats.PageViews
	}
	regTrend := newTrend[int]()
	revTrend := newTrend[float64]()
	for _, r := range registrations {
		day := r.CreatedAt.UTC().Format("2006-01-02")
		overview.TotalRegistrations++
		regTrend.add(day, 1)
		if r.CheckedIn {
			overview.CheckedIn++
		}
		if r.Status != registrationdomain.StatusConfirmed {
			continue
		}
		overview.ConfirmedRegistrations++
		var amount float64
		if r.TicketID != nil {
			amount = prices[*r.TicketID] * float64(r.Quantity)
		}
		overview.TotalRevenue += amount
		revTrend.add(day, amount)
	}
	overview.TotalRevenue = roundCents(overview.TotalRevenue)
	overview.ConversionRate = percent(int64(overview.ConfirmedRegistrations), overview.PageViews)
	overview.CheckInRate = percent(int64(overview.CheckedIn), int64(overview.ConfirmedRegistrations))

	report := &Report{
		Overview:          overview,
		TicketBreakdown:   breakdown,
		RegistrationTrend: make([]DayCount, 0, len(regTrend.days)),
		RevenueTrend:      make([]DayAmount, 0, len(revTrend.days)),
	}
	for _, day := range regTrend.days {
		report.RegistrationTrend = append(report.RegistrationTrend, DayCount{Date: day, Count: regTrend.values[day]})
	}
	for _, day := range revTrend.days {
		report.RevenueTrend = append(report.RevenueTrend, DayAmount{Date: day, Amount: roundCents(revTrend.values[day])})
	}
	return report, nil
}

func (s *Service) Dashboard(ctx context.Context, principal identity.Principal) (*Dashboard, error) {
	if err := principal.Require(); err != nil {
		return nil, err
	}
	organizerID := principal.UserID

	total, err := s.events.CountByOrganizer(ctx, s.db, organizerID)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.events.ListUpcoming(ctx, s.db, organizerID, s.clock.Now(), upcomingLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(upcoming))
	for _, e := range upcoming {
		ids = append(ids, e.ID)
	}
	counts, err := s.registrations.CountByEvents(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.registrations.CountConfirmedByOrganizer(ctx, s.db, organizerID)
	if err != nil {
		return nil, err
	}
	revenue, err := s.events.SumRevenueByOrganizer(ctx, s.db, organizerID)
	if err != nil {
		return nil, err
	}

	items := make([]UpcomingEvent, 0, len(upcoming))
	for _, e := range upcoming {
		items = append(items, UpcomingEvent{Event: e, RegistrationCount: counts[e.ID]})
	}
	return &Dashboard{
		TotalEvents:        total,
		UpcomingEvents:     items,
		TotalRegistrations: confirmed,
		TotalRevenue:       revenue,
	}, nil
}

// trend keeps per-day totals in first-seen order.
type trend[T int | float64] struct {
	days   []string
	values map[string]T
}

func newTrend[T int | float64]() *trend[T] {
	return &trend[T]{values: map[string]T{}}
}

func (t *trend[T]) add(day string, v T) {
	if _, ok := t.values[day]; !ok {
		t.days = append(t.days, day)
	}
	t.values[day] += v
}

// percent formats part/whole*100 with one decimal, or "0" when whole is zero.
func percent(part, whole int64) string {
	if whole == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(part)/float64(whole)*100, 'f', 1, 64)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
