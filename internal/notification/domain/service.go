package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const ListLimit = 50

var (
	ErrNotFound     = errors.New("notification_not_found")
	ErrInvalidInput = errors.New("invalid_notification")
)

type Service interface {
	// Create writes a notification on tx so it commits with the change it reports.
	Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (*Notification, error)
	List(ctx context.Context, userID snowflake.ID) (*ListResponse, error)
	MarkRead(ctx context.Context, userID, id snowflake.ID) error
	MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error)
	// SendEmail is best-effort; failures are logged, never returned.
	SendEmail(ctx context.Context, req EmailRequest)
}
