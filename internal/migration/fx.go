package migration

import (
	"strings"

	"github.com/reelforge/reelforge/internal/config"
	creditdomain "github.com/reelforge/reelforge/internal/credit/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module applies schema migrations on startup. Versioned SQL migrations
// cover postgres; other dialects (sqlite for local runs, mysql) fall back
// to a schema sync from the models.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		return conn.AutoMigrate(&creditdomain.CreditAccount{})
	}),
)
