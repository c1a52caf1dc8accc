// Package testutil seeds an in-memory database for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/migration"
	"github.com/smallbiznis/eventflow/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migration.ApplySQLite(conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

type Fixtures struct {
	t    *testing.T
	db   *gorm.DB
	node *snowflake.Node
}

func NewFixtures(t *testing.T, conn *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: conn, node: NewNode(t)}
}

func (f *Fixtures) ID() snowflake.ID {
	return f.node.Generate()
}

func (f *Fixtures) User(name, email string) snowflake.ID {
	f.t.Helper()
	id := f.ID()
	f.exec(`INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, email, "x", Now, Now)
	return id
}

type EventOpts struct {
	Title     string
	Slug      string
	Status    string
	Capacity  *int
	StartDate time.Time
}

func (f *Fixtures) Event(organizerID snowflake.ID, opts EventOpts) snowflake.ID {
	f.t.Helper()
	id := f.ID()
	if opts.Title == "" {
		opts.Title = "Go Meetup"
	}
	if opts.Slug == "" {
		opts.Slug = "event-" + id.String()
	}
	if opts.Status == "" {
		opts.Status = "PUBLISHED"
	}
	if opts.StartDate.IsZero() {
		opts.StartDate = Now.Add(7 * 24 * time.Hour)
	}
	f.exec(`INSERT INTO events (id, organizer_id, slug, title, description, start_date, end_date, timezone, is_virtual, capacity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, organizerID, opts.Slug, opts.Title, "A gathering", opts.StartDate, opts.StartDate.Add(2*time.Hour), "UTC", false, opts.Capacity, opts.Status, Now, Now)
	f.exec(`INSERT INTO event_analytics (event_id, page_views, total_revenue, updated_at) VALUES (?, 0, 0, ?)`, id, Now)
	return id
}

func (f *Fixtures) Ticket(eventID snowflake.ID, name string, price float64, quantity *int, sold int) snowflake.ID {
	f.t.Helper()
	id := f.ID()
	f.exec(`INSERT INTO tickets (id, event_id, name, price, quantity, sold, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, eventID, name, price, quantity, sold, Now, Now)
	return id
}

type RegistrationOpts struct {
	TicketID  *snowflake.ID
	Quantity  int
	Status    string
	CheckedIn bool
	QRCode    string
	SessionID *string
	CreatedAt time.Time
}

func (f *Fixtures) Registration(eventID, userID snowflake.ID, opts RegistrationOpts) snowflake.ID {
	f.t.Helper()
	id := f.ID()
	if opts.Quantity == 0 {
		opts.Quantity = 1
	}
	if opts.Status == "" {
		opts.Status = "CONFIRMED"
	}
	if opts.QRCode == "" {
		opts.QRCode = ulid.Make().String()
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = Now
	}
	var checkedInAt *time.Time
	if opts.CheckedIn {
		at := Now
		checkedInAt = &at
	}
	f.exec(`INSERT INTO registrations (id, event_id, user_id, ticket_id, quantity, status, checked_in, checked_in_at, qr_code, stripe_payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, eventID, userID, opts.TicketID, opts.Quantity, opts.Status, opts.CheckedIn, checkedInAt, opts.QRCode, opts.SessionID, opts.CreatedAt, opts.CreatedAt)
	return id
}

func (f *Fixtures) Count(query string, args ...interface{}) int64 {
	f.t.Helper()
	var count int64
	if err := f.db.Raw(query, args...).Scan(&count).Error; err != nil {
		f.t.Fatalf("count %q: %v", query, err)
	}
	return count
}

func (f *Fixtures) exec(query string, args ...interface{}) {
	f.t.Helper()
	if err := f.db.Exec(query, args...).Error; err != nil {
		f.t.Fatalf("seed %q: %v", query, err)
	}
}

func IntPtr(v int) *int { return &v }

func IDPtr(v snowflake.ID) *snowflake.ID { return &v }

func StrPtr(v string) *string { return &v }

// NewAuthz returns an ownership authorizer backed by an in-memory policy set.
func NewAuthz(t *testing.T, conn *gorm.DB) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewMemoryEnforcer()
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return authorization.NewService(authorization.Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer})
}
