package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/identity"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a session token to the calling principal.
	Authenticate(ctx context.Context, rawToken string) (identity.Principal, error)
	// IssueToken signs a bearer token for an authenticated principal.
	IssueToken(ctx context.Context, principal identity.Principal) (*TokenResult, error)
	// VerifyToken resolves a bearer token to the calling principal.
	VerifyToken(ctx context.Context, raw string) (identity.Principal, error)
	CurrentUser(ctx context.Context, principal identity.Principal) (*User, error)
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}

type TokenResult struct {
	Token     string
	ExpiresAt time.Time
}
