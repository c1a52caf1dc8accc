package payment

import (
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/payment/adapters"
	"github.com/smallbiznis/eventflow/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	"github.com/smallbiznis/eventflow/internal/payment/repository"
	paymentservice "github.com/smallbiznis/eventflow/internal/payment/service"
	"github.com/smallbiznis/eventflow/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(func(cfg config.Config) paymentdomain.CheckoutClient {
		return stripe.NewCheckoutClient(stripe.CheckoutClientConfig{
			SecretKey: cfg.Stripe.SecretKey,
			APIBase:   cfg.Stripe.APIBase,
		})
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
