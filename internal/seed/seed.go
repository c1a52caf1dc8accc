package seed

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/eventflow/internal/auth/domain"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DemoOrganizerEmail    = "organizer@eventflow.local"
	DemoOrganizerPassword = "eventflow-demo"
	demoOrganizerName     = "Demo Organizer"
)

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Auth   authdomain.Service
	Events eventdomain.Service
	Clock  clock.Clock
}

// Run seeds demo data when SEED_DEMO is set outside production.
func Run(p Params) error {
	if !p.Cfg.SeedDemo {
		return nil
	}
	log := p.Log.Named("seed")
	if p.Cfg.IsProduction() {
		log.Warn("demo seed skipped in production")
		return nil
	}

	seeded, err := Demo(context.Background(), p.Auth, p.Events, p.Clock.Now())
	if err != nil {
		return err
	}
	if seeded {
		log.Info("demo data seeded", zap.String("organizer", DemoOrganizerEmail))
	}
	return nil
}

// Demo registers the demo organizer and publishes one sample event with a
// free and a paid ticket. It reports false when the organizer already exists.
func Demo(ctx context.Context, auth authdomain.Service, events eventdomain.Service, now time.Time) (bool, error) {
	user, err := auth.Register(ctx, authdomain.RegisterRequest{
		Name:     demoOrganizerName,
		Email:    DemoOrganizerEmail,
		Password: DemoOrganizerPassword,
	})
	if errors.Is(err, authdomain.ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	organizer := identity.Principal{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Authenticated: true,
	}

	start := now.UTC().Truncate(time.Hour).Add(14 * 24 * time.Hour)
	location := "Community Hall, 12 Market Street"
	capacity := 150
	general := 120
	vip := 30
	vipNote := "Front row seating and a speaker dinner"

	_, err = events.Create(ctx, organizer, eventdomain.CreateRequest{
		Title:       "EventFlow Community Meetup",
		Description: "An evening of lightning talks, demos and pizza.",
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		Timezone:    "UTC",
		Location:    &location,
		Capacity:    &capacity,
		Status:      eventdomain.StatusPublished,
		Tickets: []eventdomain.TicketInput{
			{Name: "General Admission", Price: 0, Quantity: &general},
			{Name: "VIP", Price: 25, Quantity: &vip, Description: &vipNote},
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
