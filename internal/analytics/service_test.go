package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/eventflow/internal/analytics"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/clock"
	eventrepo "github.com/smallbiznis/eventflow/internal/event/repository"
	"github.com/smallbiznis/eventflow/internal/identity"
	registrationrepo "github.com/smallbiznis/eventflow/internal/registration/repository"
	"github.com/smallbiznis/eventflow/internal/testutil"
	ticketrepo "github.com/smallbiznis/eventflow/internal/ticket/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*analytics.Service, *testutil.Fixtures, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := analytics.New(analytics.Params{
		DB:            db,
		Log:           zap.NewNop(),
		Events:        eventrepo.Provide(),
		Tickets:       ticketrepo.Provide(),
		Registrations: registrationrepo.Provide(),
		Authz:         testutil.NewAuthz(t, db),
		Clock:         clock.NewFakeClock(testutil.Now),
	})
	return svc, testutil.NewFixtures(t, db), db
}

func TestEventReport(t *testing.T) {
	svc, fx, db := newService(t)
	org := identity.Principal{UserID: fx.User("Org", "org@example.com"), Authenticated: true}
	eventID := fx.Event(org.UserID, testutil.EventOpts{Capacity: testutil.IntPtr(100)})
	ga := fx.Ticket(eventID, "GA", 10, testutil.IntPtr(50), 3)
	vip := fx.Ticket(eventID, "VIP", 25.5, nil, 1)
	require.NoError(t, db.Exec(`UPDATE event_analytics SET page_views = 8 WHERE event_id = ?`, eventID).Error)

	day1 := testutil.Now
	day2 := testutil.Now.Add(24 * time.Hour)
	fx.Registration(eventID, fx.User("A", "a@example.com"), testutil.RegistrationOpts{TicketID: testutil.IDPtr(ga), Quantity: 2, CheckedIn: true, CreatedAt: day1})
	fx.Registration(eventID, fx.User("B", "b@example.com"), testutil.RegistrationOpts{TicketID: testutil.IDPtr(vip), CreatedAt: day1.Add(time.Hour)})
	fx.Registration(eventID, fx.User("C", "c@example.com"), testutil.RegistrationOpts{TicketID: testutil.IDPtr(ga), CreatedAt: day2})
	fx.Registration(eventID, fx.User("D", "d@example.com"), testutil.RegistrationOpts{TicketID: testutil.IDPtr(ga), Status: "PENDING", CreatedAt: day2})

	report, err := svc.EventReport(context.Background(), org, eventID)
	require.NoError(t, err)

	o := report.Overview
	assert.Equal(t, 4, o.TotalRegistrations)
	assert.Equal(t, 3, o.ConfirmedRegistrations)
	assert.Equal(t, 1, o.CheckedIn)
	assert.InDelta(t, 55.5, o.TotalRevenue, 0.001)
	assert.EqualValues(t, 8, o.PageViews)
	assert.Equal(t, "37.5", o.ConversionRate)
	assert.Equal(t, "33.3", o.CheckInRate)
	require.NotNil(t, o.Capacity)
	assert.Equal(t, 100, *o.Capacity)

	require.Len(t, report.TicketBreakdown, 2)
	byName := map[string]analytics.TicketBreakdown{}
	for _, b := range report.TicketBreakdown {
		byName[b.Name] = b
	}
	assert.InDelta(t, 30, byName["GA"].Revenue, 0.001)
	assert.Nil(t, byName["VIP"].Total)

	assert.Equal(t, []analytics.DayCount{{Date: "2026-03-01", Count: 2}, {Date: "2026-03-02", Count: 2}}, report.RegistrationTrend)
	require.Len(t, report.RevenueTrend, 2)
	assert.InDelta(t, 45.5, report.RevenueTrend[0].Amount, 0.001)
	assert.InDelta(t, 10, report.RevenueTrend[1].Amount, 0.001)
}

func TestEventReportWithoutViews(t *testing.T) {
	svc, fx, _ := newService(t)
	org := identity.Principal{UserID: fx.User("Org", "org@example.com"), Authenticated: true}
	eventID := fx.Event(org.UserID, testutil.EventOpts{})

	report, err := svc.EventReport(context.Background(), org, eventID)
	require.NoError(t, err)
	assert.Equal(t, "0", report.Overview.ConversionRate)
	assert.Equal(t, "0", report.Overview.CheckInRate)
	assert.Empty(t, report.RegistrationTrend)

	eve := identity.Principal{UserID: fx.User("Eve", "eve@example.com"), Authenticated: true}
	_, err = svc.EventReport(context.Background(), eve, eventID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestDashboard(t *testing.T) {
	svc, fx, db := newService(t)
	org := identity.Principal{UserID: fx.User("Org", "org@example.com"), Authenticated: true}

	soon := fx.Event(org.UserID, testutil.EventOpts{StartDate: testutil.Now.Add(24 * time.Hour)})
	later := fx.Event(org.UserID, testutil.EventOpts{StartDate: testutil.Now.Add(48 * time.Hour)})
	fx.Event(org.UserID, testutil.EventOpts{StartDate: testutil.Now.Add(-24 * time.Hour)})
	fx.Event(org.UserID, testutil.EventOpts{Status: "DRAFT"})
	fx.Event(fx.User("Other", "other@example.com"), testutil.EventOpts{})

	fx.Registration(soon, fx.User("A", "a@example.com"), testutil.RegistrationOpts{})
	fx.Registration(soon, fx.User("B", "b@example.com"), testutil.RegistrationOpts{Status: "PENDING"})
	fx.Registration(later, fx.User("C", "c@example.com"), testutil.RegistrationOpts{})
	require.NoError(t, db.Exec(`UPDATE event_analytics SET total_revenue = 12.5 WHERE event_id IN (?, ?)`, soon, later).Error)

	dash, err := svc.Dashboard(context.Background(), org)
	require.NoError(t, err)
	assert.EqualValues(t, 4, dash.TotalEvents)
	require.Len(t, dash.UpcomingEvents, 2)
	assert.Equal(t, soon, dash.UpcomingEvents[0].ID)
	assert.EqualValues(t, 2, dash.UpcomingEvents[0].RegistrationCount)
	assert.Equal(t, later, dash.UpcomingEvents[1].ID)
	assert.EqualValues(t, 2, dash.TotalRegistrations)
	assert.InDelta(t, 25, dash.TotalRevenue, 0.001)
}
