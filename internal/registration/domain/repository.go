package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, registration *Registration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Registration, error)
	FindByQRCode(ctx context.Context, db *gorm.DB, eventID snowflake.ID, code string) (*Registration, error)
	// FindByEmail returns the caller's most relevant registration for the event,
	// preferring non-cancelled rows.
	FindByEmail(ctx context.Context, db *gorm.DB, eventID snowflake.ID, email string) (*Registration, error)
	CountActive(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (int64, error)
	HasActive(ctx context.Context, db *gorm.DB, eventID, userID snowflake.ID) (bool, error)
	ExistsForEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (bool, error)

	// TransitionBySession moves every registration of a checkout session from
	// one status to another and returns how many rows changed.
	TransitionBySession(ctx context.Context, db *gorm.DB, sessionID string, from, to Status, now time.Time) (int64, error)
	// ApplyChange writes a transition guarded by the state it was computed from.
	ApplyChange(ctx context.Context, db *gorm.DB, id snowflake.ID, change Change, now time.Time) (int64, error)
	ListBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]Registration, error)

	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Owned, error)
	FindAttendee(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Attendee, error)
	FindOwned(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Owned, error)
	ListAttendees(ctx context.Context, db *gorm.DB, eventID snowflake.ID, filter AttendeeFilter) ([]Attendee, error)
	Stats(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (Stats, error)
	ListByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]Registration, error)
	CountByEvents(ctx context.Context, db *gorm.DB, eventIDs []snowflake.ID) (map[snowflake.ID]int64, error)
	CountConfirmedByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (int64, error)
}
