package checkout_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/eventflow/internal/checkout"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	eventrepo "github.com/smallbiznis/eventflow/internal/event/repository"
	"github.com/smallbiznis/eventflow/internal/identity"
	notificationrepo "github.com/smallbiznis/eventflow/internal/notification/repository"
	notificationservice "github.com/smallbiznis/eventflow/internal/notification/service"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	paymentmocks "github.com/smallbiznis/eventflow/internal/payment/mocks"
	"github.com/smallbiznis/eventflow/internal/providers/email"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	registrationrepo "github.com/smallbiznis/eventflow/internal/registration/repository"
	"github.com/smallbiznis/eventflow/internal/testutil"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	ticketrepo "github.com/smallbiznis/eventflow/internal/ticket/repository"
	ticketservice "github.com/smallbiznis/eventflow/internal/ticket/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	fx       *testutil.Fixtures
	svc      *checkout.Service
	payments *paymentmocks.MockCheckoutClient
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Now)
	cfg := config.Config{AppURL: "http://localhost:3000"}

	ctrl := gomock.NewController(t)
	payments := paymentmocks.NewMockCheckoutClient(ctrl)

	notifications := notificationservice.New(notificationservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  notificationrepo.Provide(),
		Email: &email.NoOpProvider{},
		Clock: clk,
		Cfg:   cfg,
	})
	registry := prometheus.NewRegistry()
	inventory := ticketservice.NewInventory(ticketservice.Params{
		Log:              zap.NewNop(),
		Tickets:          ticketrepo.Provide(),
		Events:           eventrepo.Provide(),
		Registrations:    registrationrepo.Provide(),
		InventoryMetrics: obsmetrics.NewInventoryMetrics(registry, obsmetrics.Config{ServiceName: "eventflow", Environment: "test"}),
	})
	svc := checkout.New(checkout.Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Inventory:      inventory,
		Registrations:  registrationrepo.Provide(),
		Notifications:  notifications,
		Payments:       payments,
		CheckoutConfig: config.NewStaticCheckoutConfigHolder(config.DefaultCheckoutConfig()),
		Cfg:            cfg,
		Clock:          clk,
	})
	return &harness{db: db, fx: testutil.NewFixtures(t, db), svc: svc, payments: payments, registry: registry}
}

func (h *harness) principal(name, mail string) identity.Principal {
	return identity.Principal{UserID: h.fx.User(name, mail), Email: mail, Name: name, Authenticated: true}
}

func TestRegisterFreeTicketConfirmsImmediately(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{Title: "Go Meetup", Slug: "go-meetup"})
	ticketID := h.fx.Ticket(eventID, "Free", 0, nil, 0)
	ada := h.principal("Ada", "ada@example.com")

	res, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	require.NoError(t, err)
	require.NotNil(t, res.Registration)
	assert.Empty(t, res.CheckoutURL)
	assert.Equal(t, registrationdomain.StatusConfirmed, res.Registration.Status)
	assert.Equal(t, 1, res.Registration.Quantity)
	assert.NotEmpty(t, res.Registration.QRCode)
	assert.Nil(t, res.Registration.StripePaymentID)

	assert.EqualValues(t, 1, h.fx.Count(`SELECT sold FROM tickets WHERE id = ?`, ticketID))
	assert.EqualValues(t, 1, h.fx.Count(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND title = 'Registration Confirmed' AND message = 'You''re registered for Go Meetup!'`, ada.UserID))
}

func TestRegisterPaidSoldOutCreatesNothing(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	ticketID := h.fx.Ticket(eventID, "VIP", 25, testutil.IntPtr(5), 5)
	ada := h.principal("Ada", "ada@example.com")

	_, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID, Quantity: 1})
	assert.ErrorIs(t, err, ticketdomain.ErrSoldOut)
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM registrations`))
}

func TestRegisterPaidTicketCreatesPendingRegistration(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{Title: "Go Meetup", Slug: "go-meetup"})
	ticketID := h.fx.Ticket(eventID, "GA", 10, nil, 0)
	ada := h.principal("Ada", "ada@example.com")

	h.payments.EXPECT().
		CreateCheckoutSession(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req paymentdomain.CheckoutSessionRequest) (*paymentdomain.CheckoutSession, error) {
			assert.EqualValues(t, 1000, req.UnitAmount)
			assert.Equal(t, "usd", req.Currency)
			assert.Equal(t, 2, req.Metadata.Quantity)
			assert.Equal(t, eventID, req.Metadata.EventID)
			assert.Equal(t, ticketID, req.Metadata.TicketID)
			assert.Equal(t, ada.UserID, req.Metadata.UserID)
			assert.Equal(t, "ada@example.com", req.CustomerEmail)
			assert.Equal(t, "http://localhost:3000/events/go-meetup?registration=success", req.SuccessURL)
			assert.Equal(t, "http://localhost:3000/events/go-meetup?registration=cancelled", req.CancelURL)
			assert.True(t, strings.HasPrefix(req.IdempotencyKey, "eventflow-checkout-"+eventID.String()+"-"+ada.UserID.String()+"-"))
			return &paymentdomain.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
		})

	res, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.CheckoutURL)
	assert.Equal(t, registrationdomain.StatusPending, res.Registration.Status)
	require.NotNil(t, res.Registration.StripePaymentID)
	assert.Equal(t, "cs_test_1", *res.Registration.StripePaymentID)

	assert.EqualValues(t, 0, h.fx.Count(`SELECT sold FROM tickets WHERE id = ?`, ticketID))
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM notifications`))
}

func TestRegisterPaidSessionFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	ticketID := h.fx.Ticket(eventID, "GA", 10, nil, 0)
	ada := h.principal("Ada", "ada@example.com")

	h.payments.EXPECT().CreateCheckoutSession(gomock.Any(), gomock.Any()).Return(nil, paymentdomain.ErrCheckoutFailed)

	_, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	assert.ErrorIs(t, err, paymentdomain.ErrCheckoutFailed)
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM registrations`))
}

func TestRegisterRejectsDuplicateAndBadInput(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	ticketID := h.fx.Ticket(eventID, "Free", 0, nil, 0)
	ada := h.principal("Ada", "ada@example.com")
	ctx := context.Background()

	_, err := h.svc.Register(ctx, ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	assert.ErrorIs(t, err, ticketdomain.ErrDuplicate)
	assert.EqualValues(t, 1, h.fx.Count(`SELECT COUNT(*) FROM registrations`))

	_, err = h.svc.Register(ctx, ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID, Quantity: 11})
	assert.ErrorIs(t, err, ticketdomain.ErrInvalidQuantity)

	_, err = h.svc.Register(ctx, identity.Anonymous, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	draft := h.fx.Event(organizer, testutil.EventOpts{Status: "DRAFT"})
	draftTicket := h.fx.Ticket(draft, "Free", 0, nil, 0)
	_, err = h.svc.Register(ctx, ada, checkout.RegisterRequest{EventID: draft, TicketID: draftTicket})
	assert.ErrorIs(t, err, ticketdomain.ErrEventUnavailable)
}

func TestConcurrentFreeRegistrationsNeverOversell(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	const n = 6
	ticketID := h.fx.Ticket(eventID, "Free", 0, testutil.IntPtr(n-1), 0)

	principals := make([]identity.Principal, n)
	for i := range principals {
		principals[i] = h.principal("User", "user"+string(rune('a'+i))+"@example.com")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for _, p := range principals {
		wg.Add(1)
		go func(p identity.Principal) {
			defer wg.Done()
			_, err := h.svc.Register(context.Background(), p, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ticketdomain.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, n-1, ok)
	assert.Equal(t, 1, soldOut)
	assert.EqualValues(t, n-1, h.fx.Count(`SELECT sold FROM tickets WHERE id = ?`, ticketID))
}

func TestRegisterCountsTransactionFailures(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	ticketID := h.fx.Ticket(eventID, "Free", 0, nil, 0)
	ada := h.principal("Ada", "ada@example.com")
	require.NoError(t, h.db.Exec(`DROP TABLE notifications`).Error)

	_, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	require.Error(t, err)
	assert.EqualValues(t, 0, h.fx.Count(`SELECT COUNT(*) FROM registrations`))
	assert.EqualValues(t, 0, h.fx.Count(`SELECT sold FROM tickets WHERE id = ?`, ticketID))

	expected := `
# HELP eventflow_inventory_tx_errors_total Inventory transaction failures by low-cardinality reason.
# TYPE eventflow_inventory_tx_errors_total counter
eventflow_inventory_tx_errors_total{env="test",reason="unknown",service="eventflow"} 1
`
	require.NoError(t, promtestutil.GatherAndCompare(h.registry, strings.NewReader(expected), "eventflow_inventory_tx_errors_total"))
}

func TestRegisterRejectionsAreNotTransactionFailures(t *testing.T) {
	h := newHarness(t)
	organizer := h.fx.User("Org", "org@example.com")
	eventID := h.fx.Event(organizer, testutil.EventOpts{})
	ticketID := h.fx.Ticket(eventID, "VIP", 25, testutil.IntPtr(1), 1)
	ada := h.principal("Ada", "ada@example.com")

	_, err := h.svc.Register(context.Background(), ada, checkout.RegisterRequest{EventID: eventID, TicketID: ticketID})
	require.ErrorIs(t, err, ticketdomain.ErrSoldOut)

	count, err := promtestutil.GatherAndCount(h.registry, "eventflow_inventory_tx_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
