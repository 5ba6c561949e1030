package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/reelforge/reelforge/internal/clock"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/credit"
	"github.com/reelforge/reelforge/internal/migration"
	"github.com/reelforge/reelforge/internal/observability"
	"github.com/reelforge/reelforge/internal/ratelimit"
	"github.com/reelforge/reelforge/internal/sweeper"
	"github.com/reelforge/reelforge/pkg/db"
	"go.uber.org/fx"
)

// Headless worker: runs the daily and monthly window sweeps on a
// schedule. No HTTP server here.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,

		credit.Module,
		sweeper.Module,
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
