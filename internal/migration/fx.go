package migration

import (
	"strings"

	"github.com/smallbiznis/eventflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
		case "postgres", "postgresql", "":
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		case "sqlite", "sqlite3":
			return ApplySQLite(conn)
		default:
			log.Warn("schema migrations skipped for database type", zap.String("db_type", cfg.DBType))
			return nil
		}
	}),
)
