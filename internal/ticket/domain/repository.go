package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ticket, error)
	// FindForEventForUpdate locks the row on databases that support row locks.
	FindForEventForUpdate(ctx context.Context, db *gorm.DB, eventID, ticketID snowflake.ID) (*Ticket, error)
	ListByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) ([]Ticket, error)
	ListByEvents(ctx context.Context, db *gorm.DB, eventIDs []snowflake.ID) ([]Ticket, error)
	// IncrementSold adds qty to sold. When guarded, the update only applies while
	// the tier still has room; the bool reports whether a row changed.
	IncrementSold(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int, guarded bool) (bool, error)
	DeleteByEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error
}
