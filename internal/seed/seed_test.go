package seed

import (
	"context"
	"testing"
	"time"

	authdomain "github.com/smallbiznis/eventflow/internal/auth/domain"
	authrepo "github.com/smallbiznis/eventflow/internal/auth/repository"
	authservice "github.com/smallbiznis/eventflow/internal/auth/service"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	eventrepo "github.com/smallbiznis/eventflow/internal/event/repository"
	eventservice "github.com/smallbiznis/eventflow/internal/event/service"
	"github.com/smallbiznis/eventflow/internal/identity"
	registrationrepo "github.com/smallbiznis/eventflow/internal/registration/repository"
	"github.com/smallbiznis/eventflow/internal/testutil"
	ticketrepo "github.com/smallbiznis/eventflow/internal/ticket/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDemoSeedsOnce(t *testing.T) {
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Now)

	users, sessions := authrepo.New(conn)
	auth := authservice.New(authservice.Params{
		Cfg:         config.Config{AppName: "eventflow"},
		Log:         zap.NewNop(),
		Repo:        users,
		SessionRepo: sessions,
		GenID:       node,
		Clock:       clk,
	})
	events := eventservice.New(eventservice.Params{
		DB:             conn,
		Log:            zap.NewNop(),
		GenID:          node,
		Repo:           eventrepo.Provide(),
		Tickets:        ticketrepo.Provide(),
		Registrations:  registrationrepo.Provide(),
		Authz:          testutil.NewAuthz(t, conn),
		Clock:          clk,
		CheckoutConfig: config.NewStaticCheckoutConfigHolder(config.DefaultCheckoutConfig()),
	})

	ctx := context.Background()
	seeded, err := Demo(ctx, auth, events, clk.Now())
	require.NoError(t, err)
	require.True(t, seeded)

	seeded, err = Demo(ctx, auth, events, clk.Now())
	require.NoError(t, err)
	require.False(t, seeded)

	result, err := auth.Login(ctx, authdomain.LoginRequest{Email: DemoOrganizerEmail, Password: DemoOrganizerPassword})
	require.NoError(t, err)

	organizer := identity.Principal{UserID: result.User.ID, Email: result.User.Email, Authenticated: true}
	list, err := events.List(ctx, organizer, eventdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Events, 1)

	detail, err := events.Get(ctx, list.Events[0].ID)
	require.NoError(t, err)
	require.Equal(t, eventdomain.StatusPublished, detail.Status)
	require.Len(t, detail.Tickets, 2)
	require.True(t, detail.StartDate.After(testutil.Now.Add(13*24*time.Hour)))
}
