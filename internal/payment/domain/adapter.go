package domain

import (
	"context"
	"net/http"
)

//go:generate mockgen -source=adapter.go -destination=../mocks/mock_adapter.go -package=mocks

type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (WebhookAdapter, error)
}

// WebhookAdapter verifies and decodes one provider's webhook deliveries.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutEvent, error)
}

// CheckoutClient opens hosted checkout sessions with a provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}
