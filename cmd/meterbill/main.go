package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/nextlevelcode/meterbill/internal/billing"
	"github.com/nextlevelcode/meterbill/internal/catalog"
	"github.com/nextlevelcode/meterbill/internal/client"
	"github.com/nextlevelcode/meterbill/internal/clock"
	"github.com/nextlevelcode/meterbill/internal/config"
	"github.com/nextlevelcode/meterbill/internal/ledger"
	"github.com/nextlevelcode/meterbill/internal/logger"
	"github.com/nextlevelcode/meterbill/internal/migration"
	"github.com/nextlevelcode/meterbill/internal/providers/email"
	"github.com/nextlevelcode/meterbill/internal/providers/pdf"
	"github.com/nextlevelcode/meterbill/internal/ratelimit"
	"github.com/nextlevelcode/meterbill/internal/scheduler"
	"github.com/nextlevelcode/meterbill/internal/server"
	"github.com/nextlevelcode/meterbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		client.Module,
		catalog.Module,
		ledger.Module,
		email.Module,
		pdf.Module,
		billing.Module,
		ratelimit.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
