package session

import (
	"github.com/roomvision/roomvision/internal/session/repository"
	"github.com/roomvision/roomvision/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
		NewManager,
	),
)
