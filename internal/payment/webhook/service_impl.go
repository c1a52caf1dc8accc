package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/payment/adapters"
	"github.com/smallbiznis/eventflow/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	paymentservice "github.com/smallbiznis/eventflow/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultProvider serves the provider-agnostic webhook route.
const DefaultProvider = stripe.ProviderName

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
	Cfg        config.Config
}

type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapters   *adapters.Registry
	configured map[string]paymentdomain.WebhookAdapter
}

func NewService(p Params) paymentdomain.WebhookService {
	log := p.Log.Named("payment.webhook")
	configured := map[string]paymentdomain.WebhookAdapter{}

	for provider, cfg := range providerConfigs(p.Cfg) {
		adapter, err := p.Adapters.NewAdapter(provider, cfg)
		if err != nil {
			log.Warn("payment provider webhook disabled", zap.String("provider", provider), zap.Error(err))
			continue
		}
		configured[provider] = adapter
	}

	return &Service{
		log:        log,
		paymentSvc: p.PaymentSvc,
		adapters:   p.Adapters,
		configured: configured,
	}
}

func providerConfigs(cfg config.Config) map[string]paymentdomain.AdapterConfig {
	return map[string]paymentdomain.AdapterConfig{
		stripe.ProviderName: {
			Provider: stripe.ProviderName,
			Config: map[string]any{
				"webhook_secret": cfg.Stripe.WebhookSecret,
				"tolerance":      cfg.Stripe.SignatureTolerance,
			},
		},
	}
}

// IngestWebhook verifies the delivery before anything is read from or
// written to the database. Ignored event types and redeliveries of
// processed events are acknowledged with a nil error.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == "payment" {
		provider = DefaultProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	adapter, ok := s.configured[provider]
	if !ok {
		s.log.Error("payment webhook received but provider is not configured", zap.String("provider", provider))
		return paymentdomain.ErrProviderNotConfigured
	}

	log := s.log.With(zap.String("provider", provider))
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		log.Warn("payment webhook signature rejected", zap.Error(err))
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			log.Debug("payment webhook ignored")
			return nil
		}
		if errors.Is(err, paymentdomain.ErrInvalidMetadata) {
			log.Warn("payment webhook missing checkout metadata")
		}
		return err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	log = log.With(zap.String("event_type", event.Type), zap.String("provider_event_id", event.ProviderEventID))
	if err := s.paymentSvc.ProcessEvent(ctx, event, payload); err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			log.Info("payment webhook already processed")
			return nil
		}
		return err
	}
	return nil
}
