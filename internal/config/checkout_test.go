package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutURLExpandsTemplate(t *testing.T) {
	cfg := DefaultCheckoutConfig()

	got := cfg.CheckoutURL(cfg.SuccessURL, "https://eventflow.test/", "go-meetup")
	assert.Equal(t, "https://eventflow.test/events/go-meetup?registration=success", got)

	got = cfg.CheckoutURL(cfg.CancelURL, "https://eventflow.test", "go-meetup")
	assert.Equal(t, "https://eventflow.test/events/go-meetup?registration=cancelled", got)
}

func TestValidateCheckoutConfig(t *testing.T) {
	require.NoError(t, validateCheckoutConfig(DefaultCheckoutConfig()))

	bad := DefaultCheckoutConfig()
	bad.Currency = "dollars"
	require.Error(t, validateCheckoutConfig(bad))

	bad = DefaultCheckoutConfig()
	bad.MaxQuantity = 0
	require.Error(t, validateCheckoutConfig(bad))

	bad = DefaultCheckoutConfig()
	bad.CheckinLimit.Burst = 0
	require.Error(t, validateCheckoutConfig(bad))
}

func TestHolderFallsBackToDefaults(t *testing.T) {
	var holder *CheckoutConfigHolder
	assert.Equal(t, 10, holder.Get().MaxQuantity)

	pinned := NewStaticCheckoutConfigHolder(CheckoutConfig{Currency: "eur", MaxQuantity: 2})
	assert.Equal(t, "eur", pinned.Get().Currency)
}
