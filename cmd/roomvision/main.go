package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/roomvision/roomvision/internal/account"
	"github.com/roomvision/roomvision/internal/audit"
	"github.com/roomvision/roomvision/internal/checkout"
	"github.com/roomvision/roomvision/internal/clock"
	"github.com/roomvision/roomvision/internal/cloudmetrics"
	"github.com/roomvision/roomvision/internal/config"
	"github.com/roomvision/roomvision/internal/entitlement"
	"github.com/roomvision/roomvision/internal/generation"
	"github.com/roomvision/roomvision/internal/migration"
	"github.com/roomvision/roomvision/internal/observability"
	"github.com/roomvision/roomvision/internal/providers"
	"github.com/roomvision/roomvision/internal/ratelimit"
	"github.com/roomvision/roomvision/internal/server"
	sessionmodule "github.com/roomvision/roomvision/internal/session"
	"github.com/roomvision/roomvision/internal/settlement"
	"github.com/roomvision/roomvision/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		account.Module,
		entitlement.Module,
		audit.Module,
		settlement.Module,
		generation.Module,
		checkout.Module,
		sessionmodule.Module,
		ratelimit.Module,
		providers.Module,
		cloudmetrics.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
