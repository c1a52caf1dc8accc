package adapters_test

import (
	"errors"
	"testing"

	"github.com/smallbiznis/eventflow/internal/payment/adapters"
	"github.com/smallbiznis/eventflow/internal/payment/adapters/stripe"
	"github.com/smallbiznis/eventflow/internal/payment/domain"
)

func TestRegistryResolvesProvidersCaseInsensitively(t *testing.T) {
	registry := adapters.NewRegistry(stripe.NewFactory(), nil)

	if !registry.ProviderExists(" Stripe ") {
		t.Fatalf("expected stripe to be registered")
	}
	if registry.ProviderExists("paypal") {
		t.Fatalf("expected paypal to be unknown")
	}

	if _, err := registry.NewAdapter("paypal", domain.AdapterConfig{}); !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if _, err := registry.NewAdapter("stripe", domain.AdapterConfig{Config: map[string]any{}}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without webhook secret, got %v", err)
	}
	adapter, err := registry.NewAdapter("STRIPE", domain.AdapterConfig{Config: map[string]any{"webhook_secret": "whsec_test"}})
	if err != nil || adapter == nil {
		t.Fatalf("expected adapter, got %v", err)
	}
}

func TestNilRegistry(t *testing.T) {
	var registry *adapters.Registry
	if registry.ProviderExists("stripe") {
		t.Fatalf("nil registry should not report providers")
	}
}
