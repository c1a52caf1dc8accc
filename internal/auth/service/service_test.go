package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/eventflow/internal/auth/domain"
	"github.com/smallbiznis/eventflow/internal/auth/repository"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/identity"
	"github.com/smallbiznis/eventflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, secret string) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn := testutil.NewDB(t)
	repo, sessionRepo := repository.New(conn)
	clk := clock.NewFakeClock(testutil.Now)

	svc := New(Params{
		Cfg:         config.Config{AppName: "eventflow", AuthJWTSecret: secret, AuthJWTTTL: time.Hour},
		Log:         zap.NewNop(),
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       testutil.NewNode(t),
		Clock:       clk,
	})
	return svc, clk
}

func register(t *testing.T, svc domain.Service) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name:     "Ada Lovelace",
		Email:    "Ada@Example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t, "")

	user := register(t, svc)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "correct-password", user.PasswordHash)

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name:     "Ada Again",
		Email:    "ada@example.com",
		Password: "another-password",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, "")

	cases := []struct {
		name string
		req  domain.RegisterRequest
		want error
	}{
		{"short name", domain.RegisterRequest{Name: "A", Email: "a@example.com", Password: "password1"}, domain.ErrInvalidName},
		{"bad email", domain.RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "password1"}, domain.ErrInvalidEmail},
		{"short password", domain.RegisterRequest{Name: "Ada", Email: "a@example.com", Password: "short"}, domain.ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, "")
	register(t, svc)

	_, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong-password",
	})
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	_, err = svc.Login(context.Background(), domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-password",
	})
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc, clk := newTestService(t, "")
	user := register(t, svc)
	ctx := context.Background()

	result, err := svc.Login(ctx, domain.LoginRequest{Email: "ADA@example.com", Password: "correct-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, testutil.Now.Add(sessionTTL), result.ExpiresAt)

	principal, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, "Ada Lovelace", principal.Name)
	assert.True(t, principal.Authenticated)

	me, err := svc.CurrentUser(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, user.Email, me.Email)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	clk.Advance(sessionTTL)
	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t, "")
	register(t, svc)
	ctx := context.Background()

	result, err := svc.Login(ctx, domain.LoginRequest{Email: "ada@example.com", Password: "correct-password"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.RawToken))

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
	assert.ErrorIs(t, svc.Logout(ctx, result.RawToken), domain.ErrInvalidSession)
	assert.ErrorIs(t, svc.Logout(ctx, ""), domain.ErrInvalidSession)
}

func TestBearerToken(t *testing.T) {
	svc, clk := newTestService(t, "test-secret")
	user := register(t, svc)
	ctx := context.Background()

	principal := identity.Principal{UserID: user.ID, Email: user.Email, Name: user.Name, Authenticated: true}
	token, err := svc.IssueToken(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, testutil.Now.Add(time.Hour), token.ExpiresAt)

	got, err := svc.VerifyToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)

	_, err = svc.VerifyToken(ctx, token.Token+"x")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	clk.Advance(2 * time.Hour)
	_, err = svc.VerifyToken(ctx, token.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.IssueToken(ctx, identity.Anonymous)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestBearerTokenDisabledWithoutSecret(t *testing.T) {
	svc, _ := newTestService(t, "")
	_, err := svc.IssueToken(context.Background(), identity.Principal{UserID: 1, Authenticated: true})
	assert.ErrorIs(t, err, domain.ErrTokenDisabled)

	_, err = svc.VerifyToken(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
