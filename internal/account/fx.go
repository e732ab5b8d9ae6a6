package account

import (
	"github.com/roomvision/roomvision/internal/account/repository"
	"github.com/roomvision/roomvision/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
