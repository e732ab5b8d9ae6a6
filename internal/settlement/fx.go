package settlement

import (
	"github.com/roomvision/roomvision/internal/settlement/adapters"
	"github.com/roomvision/roomvision/internal/settlement/adapters/stripe"
	"github.com/roomvision/roomvision/internal/settlement/repository"
	settlementservice "github.com/roomvision/roomvision/internal/settlement/service"
	"github.com/roomvision/roomvision/internal/settlement/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(settlementservice.NewService),
	fx.Provide(webhook.NewService),
)
