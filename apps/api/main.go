package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/reelforge/reelforge/internal/clock"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/migration"
	"github.com/reelforge/reelforge/internal/observability"
	"github.com/reelforge/reelforge/internal/server"
	"github.com/reelforge/reelforge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
		migration.Module,
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
