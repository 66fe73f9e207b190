package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kilnworks-backend/config"
	"kilnworks-backend/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates the schema, including the index that allows only one
// loading, firing or cooling firing per kiln.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Kiln{},
		&model.Firing{},
		&model.KilnSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	for _, ddl := range constraintDDL() {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func constraintDDL() []string {
	quoted := make([]string, len(model.ActiveFiringStatuses))
	for i, s := range model.ActiveFiringStatuses {
		quoted[i] = "'" + string(s) + "'"
	}
	active := strings.Join(quoted, ", ")

	return []string{
		// Postgres and SQLite both support partial indexes.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_firings_one_active_per_kiln ON firings (kiln_id) " +
			"WHERE status IN (" + active + ");",

		"CREATE INDEX IF NOT EXISTS idx_firings_kiln_status ON firings (kiln_id, status);",
	}
}
