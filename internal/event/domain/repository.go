package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	Update(ctx context.Context, db *gorm.DB, event *Event) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	// FindByIDForUpdate serializes reservations against the same event.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Event, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Event, int64, error)
	ListUpcoming(ctx context.Context, db *gorm.DB, organizerID snowflake.ID, from time.Time, limit int) ([]Event, error)
	FindOrganizer(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Organizer, error)
	CountByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (int64, error)

	InsertAnalytics(ctx context.Context, db *gorm.DB, analytics *Analytics) error
	FindAnalytics(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*Analytics, error)
	IncrementPageViews(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error
	AddRevenue(ctx context.Context, db *gorm.DB, eventID snowflake.ID, amount float64) error
	SumRevenueByOrganizer(ctx context.Context, db *gorm.DB, organizerID snowflake.ID) (float64, error)
	DeleteAnalytics(ctx context.Context, db *gorm.DB, eventID snowflake.ID) error
}
