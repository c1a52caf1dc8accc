package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/clock"
	"github.com/smallbiznis/eventflow/internal/config"
	"github.com/smallbiznis/eventflow/internal/migration"
	"github.com/smallbiznis/eventflow/internal/observability"
	"github.com/smallbiznis/eventflow/internal/observability/metricspush"
	"github.com/smallbiznis/eventflow/internal/scheduler"
	"github.com/smallbiznis/eventflow/internal/seed"
	"github.com/smallbiznis/eventflow/internal/server"
	"github.com/smallbiznis/eventflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		metricspush.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// HTTP API and the services behind it
		server.Module,

		scheduler.Module,
		seed.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
