package payment

import (
	"github.com/smallbiznis/covera/internal/payment/adapters"
	"github.com/smallbiznis/covera/internal/payment/adapters/epay"
	"github.com/smallbiznis/covera/internal/payment/repository"
	paymentservice "github.com/smallbiznis/covera/internal/payment/service"
	"github.com/smallbiznis/covera/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(epay.NewClient),
	fx.Provide(func(client *epay.Client) *adapters.Registry {
		return adapters.NewRegistry(
			epay.NewMoMo(client),
			epay.NewAirtel(client),
		)
	}),
	fx.Provide(paymentservice.New),
	fx.Provide(webhook.NewDispatcher),
)
