package service

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/eventflow/internal/auth/domain"
	"github.com/smallbiznis/eventflow/internal/identity"
)

const defaultTokenTTL = 12 * time.Hour

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// tokenSigner issues HS256 bearer tokens for check-in scanners.
type tokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func (t tokenSigner) enabled() bool {
	return len(t.secret) > 0
}

func (t tokenSigner) sign(principal identity.Principal, now time.Time) (*domain.TokenResult, error) {
	if !t.enabled() {
		return nil, domain.ErrTokenDisabled
	}
	ttl := t.ttl
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: principal.Email,
		Name:  principal.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return &domain.TokenResult{Token: signed, ExpiresAt: expiresAt}, nil
}

func (t tokenSigner) verify(raw string, now func() time.Time) (identity.Principal, error) {
	raw = strings.TrimSpace(raw)
	if !t.enabled() || raw == "" {
		return identity.Anonymous, domain.ErrInvalidToken
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return identity.Anonymous, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return identity.Anonymous, domain.ErrInvalidToken
	}
	return identity.Principal{
		UserID:        userID,
		Email:         claims.Email,
		Name:          claims.Name,
		Authenticated: true,
	}, nil
}
