package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/identity"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service decides what a principal may do within one event.
type Service interface {
	Authorize(ctx context.Context, principal identity.Principal, eventID snowflake.ID, object string, action string) error
	// RevokeEvent drops every role binding scoped to the event.
	RevokeEvent(ctx context.Context, eventID snowflake.ID) error
}
