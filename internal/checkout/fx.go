package checkout

import (
	"github.com/roomvision/roomvision/internal/checkout/service"
	"github.com/roomvision/roomvision/internal/checkout/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(
		stripe.NewClient,
		service.NewService,
	),
)
