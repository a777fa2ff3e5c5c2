package migration

import (
	billingdomain "github.com/nextlevelcode/meterbill/internal/billing/domain"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
	clientdomain "github.com/nextlevelcode/meterbill/internal/client/domain"
	"github.com/nextlevelcode/meterbill/internal/config"
	ledgerdomain "github.com/nextlevelcode/meterbill/internal/ledger/domain"
	"github.com/nextlevelcode/meterbill/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := conn.AutoMigrate(
				&clientdomain.Client{},
				&clientdomain.APIKey{},
				&catalogdomain.ModelPrice{},
				&ledgerdomain.UsageRecord{},
				&ledgerdomain.UploadRecord{},
				&billingdomain.Billing{},
			); err != nil {
				return err
			}
			// AutoMigrate cannot express partial indexes; the open-cycle
			// uniqueness backstop is created by hand.
			if err := conn.Exec(
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_billings_open_client ON billings (client_id) WHERE status = FALSE`,
			).Error; err != nil {
				return err
			}
		}

		return seed.EnsureDefaultModels(conn)
	}),
)
