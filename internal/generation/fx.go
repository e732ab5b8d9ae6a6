package generation

import (
	"github.com/roomvision/roomvision/internal/cache"
	"github.com/roomvision/roomvision/internal/generation/higgsfield"
	"github.com/roomvision/roomvision/internal/generation/repository"
	"github.com/roomvision/roomvision/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation.service",
	fx.Provide(
		repository.Provide,
		higgsfield.NewClient,
		cache.NewEffectCache,
		service.NewService,
	),
)
