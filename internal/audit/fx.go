package audit

import (
	"github.com/roomvision/roomvision/internal/audit/repository"
	"github.com/roomvision/roomvision/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
