// Package identity carries the authenticated caller through core operations.
package identity

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is resolved once at the HTTP boundary and passed explicitly to services.
type Principal struct {
	UserID        snowflake.ID
	Email         string
	Name          string
	Authenticated bool
}

// Anonymous is the zero principal.
var Anonymous = Principal{}

// DisplayName falls back to the email when the user has no name.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Require returns ErrUnauthenticated for anonymous callers.
func (p Principal) Require() error {
	if !p.Authenticated || p.UserID == 0 {
		return ErrUnauthenticated
	}
	return nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Anonymous
	}
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok {
		return Anonymous
	}
	return p
}
