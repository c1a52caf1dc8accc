package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CheckoutConfig is the operator-tunable part of the registration flow.
type CheckoutConfig struct {
	Currency          string        `mapstructure:"currency"`
	SuccessURL        string        `mapstructure:"successUrl"`
	CancelURL         string        `mapstructure:"cancelUrl"`
	MaxQuantity       int           `mapstructure:"maxQuantity"`
	PublicEventTTL    time.Duration `mapstructure:"publicEventTtl"`
	RegistrationLimit LimitConfig   `mapstructure:"registrationLimit"`
	CheckinLimit      LimitConfig   `mapstructure:"checkinLimit"`
	CheckinLockTTL    time.Duration `mapstructure:"checkinLockTtl"`
}

type LimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		Currency:          "usd",
		SuccessURL:        "{appUrl}/events/{slug}?registration=success",
		CancelURL:         "{appUrl}/events/{slug}?registration=cancelled",
		MaxQuantity:       10,
		PublicEventTTL:    30 * time.Second,
		RegistrationLimit: LimitConfig{Rate: 0.5, Burst: 5},
		CheckinLimit:      LimitConfig{Rate: 20, Burst: 40},
		CheckinLockTTL:    5 * time.Second,
	}
}

// CheckoutURL expands a success or cancel template.
func (c CheckoutConfig) CheckoutURL(template, appURL, slug string) string {
	return strings.NewReplacer(
		"{appUrl}", strings.TrimRight(appURL, "/"),
		"{slug}", slug,
	).Replace(template)
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

// NewStaticCheckoutConfigHolder pins a config without watching any file.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCheckoutConfigHolder() (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/eventflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EVENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setCheckoutDefaults(v, DefaultCheckoutConfig())

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCheckoutConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Printf("[checkout-config] reload failed: %v", err)
			return
		}
		if err := validateCheckoutConfig(updated); err != nil {
			log.Printf("[checkout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[checkout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	if h == nil {
		return DefaultCheckoutConfig()
	}
	cfg, ok := h.current.Load().(CheckoutConfig)
	if !ok {
		return DefaultCheckoutConfig()
	}
	return cfg
}

func setCheckoutDefaults(v *viper.Viper, defaults CheckoutConfig) {
	v.SetDefault("checkout.currency", defaults.Currency)
	v.SetDefault("checkout.successUrl", defaults.SuccessURL)
	v.SetDefault("checkout.cancelUrl", defaults.CancelURL)
	v.SetDefault("checkout.maxQuantity", defaults.MaxQuantity)
	v.SetDefault("checkout.publicEventTtl", defaults.PublicEventTTL)
	v.SetDefault("checkout.registrationLimit.rate", defaults.RegistrationLimit.Rate)
	v.SetDefault("checkout.registrationLimit.burst", defaults.RegistrationLimit.Burst)
	v.SetDefault("checkout.checkinLimit.rate", defaults.CheckinLimit.Rate)
	v.SetDefault("checkout.checkinLimit.burst", defaults.CheckinLimit.Burst)
	v.SetDefault("checkout.checkinLockTtl", defaults.CheckinLockTTL)
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if len(strings.TrimSpace(cfg.Currency)) != 3 {
		return errors.New("checkout.currency must be a 3-letter ISO code")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return errors.New("checkout.successUrl and checkout.cancelUrl are required")
	}
	if cfg.MaxQuantity <= 0 {
		return errors.New("checkout.maxQuantity must be positive")
	}
	if cfg.RegistrationLimit.Rate <= 0 || cfg.RegistrationLimit.Burst <= 0 {
		return errors.New("checkout.registrationLimit must be positive")
	}
	if cfg.CheckinLimit.Rate <= 0 || cfg.CheckinLimit.Burst <= 0 {
		return errors.New("checkout.checkinLimit must be positive")
	}
	return nil
}
