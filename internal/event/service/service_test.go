package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/event/repository"
	"github.com/smallbiznis/eventflow/internal/event/service"
	"github.com/smallbiznis/eventflow/internal/identity"
	registrationrepo "github.com/smallbiznis/eventflow/internal/registration/repository"
	"github.com/smallbiznis/eventflow/internal/testutil"
	ticketrepo "github.com/smallbiznis/eventflow/internal/ticket/repository"
	"github.com/smallbiznis/eventflow/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	fx    *testutil.Fixtures
	svc   domain.Service
	clock *clock.FakeClock
	org   identity.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	clk := clock.NewFakeClock(testutil.Now)
	svc := service.New(service.Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          testutil.NewNode(t),
		Repo:           repository.Provide(),
		Tickets:        ticketrepo.Provide(),
		Registrations:  registrationrepo.Provide(),
		Authz:          testutil.NewAuthz(t, db),
		Clock:          clk,
		CheckoutConfig: config.NewStaticCheckoutConfigHolder(config.DefaultCheckoutConfig()),
	})
	fx := testutil.NewFixtures(t, db)
	org := identity.Principal{UserID: fx.User("Org", "org@example.com"), Name: "Org", Authenticated: true}
	return &harness{fx: fx, svc: svc, clock: clk, org: org}
}

func createRequest(title string) domain.CreateRequest {
	start := testutil.Now.Add(72 * time.Hour)
	return domain.CreateRequest{
		Title:       title,
		Description: "Talks and pizza",
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		Timezone:    "Europe/Berlin",
		Tickets: []domain.TicketInput{
			{Name: "Free", Price: 0},
			{Name: "VIP", Price: 49.5, Quantity: testutil.IntPtr(20)},
		},
	}
}

func TestCreateEventWithTicketsAndAnalytics(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.Create(context.Background(), h.org, createRequest("Go Meetup Berlin"))
	require.NoError(t, err)
	assert.Equal(t, "go-meetup-berlin", first.Slug)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.Equal(t, h.org.UserID, first.OrganizerID)
	require.Len(t, first.Tickets, 2)

	second, err := h.svc.Create(context.Background(), h.org, createRequest("Go Meetup Berlin"))
	require.NoError(t, err)
	assert.Equal(t, "go-meetup-berlin-2", second.Slug)

	assert.EqualValues(t, 4, h.fx.Count(`SELECT COUNT(*) FROM tickets`))
	assert.EqualValues(t, 1, h.fx.Count(`SELECT COUNT(*) FROM event_analytics WHERE event_id = ?`, first.ID))
}

func TestCreateEventRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)

	short := createRequest("Go")
	_, err := h.svc.Create(context.Background(), h.org, short)
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	backwards := createRequest("Backwards")
	backwards.EndDate = backwards.StartDate.Add(-time.Hour)
	_, err = h.svc.Create(context.Background(), h.org, backwards)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	cancelled := createRequest("Cancelled on arrival")
	cancelled.Status = domain.StatusCancelled
	_, err = h.svc.Create(context.Background(), h.org, cancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	badTicket := createRequest("Bad ticket")
	badTicket.Tickets = []domain.TicketInput{{Name: "Neg", Price: -1}}
	_, err = h.svc.Create(context.Background(), h.org, badTicket)
	assert.ErrorIs(t, err, domain.ErrInvalidTicket)

	_, err = h.svc.Create(context.Background(), identity.Anonymous, createRequest("Anonymous"))
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM events`))
}

func TestListEventsPaginatesAndSearches(t *testing.T) {
	h := newHarness(t)
	for _, title := range []string{"Alpha Conf", "Beta Conf", "Gamma Meetup"} {
		_, err := h.svc.Create(context.Background(), h.org, createRequest(title))
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}
	h.fx.Event(h.fx.User("Other", "other@example.com"), testutil.EventOpts{Title: "Other Conf"})

	page, err := h.svc.List(context.Background(), h.org, domain.ListRequest{Pagination: pagination.Pagination{Page: 1, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, "Gamma Meetup", page.Events[0].Title)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Len(t, page.Events[0].Tickets, 2)

	found, err := h.svc.List(context.Background(), h.org, domain.ListRequest{Search: "conf"})
	require.NoError(t, err)
	assert.Len(t, found.Events, 2)
	assert.Equal(t, 10, found.Pagination.Limit)

	_, err = h.svc.List(context.Background(), h.org, domain.ListRequest{Status: "ARCHIVED"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestGetEventIncludesOrganizerAndCount(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.Create(context.Background(), h.org, createRequest("Go Meetup"))
	require.NoError(t, err)
	h.fx.Registration(created.ID, h.fx.User("Ada", "ada@example.com"), testutil.RegistrationOpts{})

	detail, err := h.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Organizer)
	assert.Equal(t, "org@example.com", detail.Organizer.Email)
	assert.EqualValues(t, 1, detail.RegistrationCount)

	_, err = h.svc.Get(context.Background(), h.fx.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateEventOwnerOnly(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.Create(context.Background(), h.org, createRequest("Go Meetup"))
	require.NoError(t, err)

	eve := identity.Principal{UserID: h.fx.User("Eve", "eve@example.com"), Authenticated: true}
	title := "Hijacked"
	_, err = h.svc.Update(context.Background(), eve, created.ID, domain.UpdateRequest{Title: &title})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	published := domain.StatusPublished
	empty := ""
	capacity := 0
	updated, err := h.svc.Update(context.Background(), h.org, created.ID, domain.UpdateRequest{
		Status:     &published,
		MeetingURL: &empty,
		Capacity:   &capacity,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, updated.Status)
	assert.Nil(t, updated.Capacity)
	assert.Nil(t, updated.MeetingURL)
	assert.Equal(t, "Go Meetup", updated.Title)

	bogus := domain.Status("ARCHIVED")
	_, err = h.svc.Update(context.Background(), h.org, created.ID, domain.UpdateRequest{Status: &bogus})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestDeleteEventWithRegistrationsIsRejected(t *testing.T) {
	h := newHarness(t)
	busy, err := h.svc.Create(context.Background(), h.org, createRequest("Busy Event"))
	require.NoError(t, err)
	h.fx.Registration(busy.ID, h.fx.User("Ada", "ada@example.com"), testutil.RegistrationOpts{Status: "CANCELLED"})

	err = h.svc.Delete(context.Background(), h.org, busy.ID)
	assert.ErrorIs(t, err, domain.ErrHasRegistrations)
	assert.EqualValues(t, 1, h.fx.Count(`SELECT COUNT(*) FROM events WHERE id = ?`, busy.ID))

	empty, err := h.svc.Create(context.Background(), h.org, createRequest("Empty Event"))
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(context.Background(), h.org, empty.ID))
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM events WHERE id = ?`, empty.ID))
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM tickets WHERE event_id = ?`, empty.ID))
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM event_analytics WHERE event_id = ?`, empty.ID))
}

func TestGetPublicHidesDraftsAndCountsViews(t *testing.T) {
	h := newHarness(t)
	h.fx.Event(h.org.UserID, testutil.EventOpts{Slug: "secret", Status: "DRAFT"})
	eventID := h.fx.Event(h.org.UserID, testutil.EventOpts{Slug: "open", Title: "Open Day"})

	_, err := h.svc.GetPublic(context.Background(), "secret")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.svc.GetPublic(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for i := 0; i < 3; i++ {
		detail, err := h.svc.GetPublic(context.Background(), "open")
		require.NoError(t, err)
		assert.Equal(t, "Open Day", detail.Title)
	}
	assert.EqualValues(t, 3, h.fx.Count(`SELECT page_views FROM event_analytics WHERE event_id = ?`, eventID))
}

func TestGetPublicCachesUntilUpdate(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.Create(context.Background(), h.org, createRequest("Cached Event"))
	require.NoError(t, err)
	published := domain.StatusPublished
	_, err = h.svc.Update(context.Background(), h.org, created.ID, domain.UpdateRequest{Status: &published})
	require.NoError(t, err)

	first, err := h.svc.GetPublic(context.Background(), created.Slug)
	require.NoError(t, err)
	assert.EqualValues(t, 0, first.RegistrationCount)

	h.fx.Registration(created.ID, h.fx.User("Ada", "ada@example.com"), testutil.RegistrationOpts{})
	cached, err := h.svc.GetPublic(context.Background(), created.Slug)
	require.NoError(t, err)
	assert.EqualValues(t, 0, cached.RegistrationCount)

	h.clock.Advance(31 * time.Second)
	fresh, err := h.svc.GetPublic(context.Background(), created.Slug)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.RegistrationCount)

	draft := domain.StatusDraft
	_, err = h.svc.Update(context.Background(), h.org, created.ID, domain.UpdateRequest{Status: &draft})
	require.NoError(t, err)
	_, err = h.svc.GetPublic(context.Background(), created.Slug)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
