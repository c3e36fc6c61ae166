package config

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sevenfour/order-workflow-api/migrations"
	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateDatabase brings the schema up to date.
// MySQL runs the versioned SQL migrations; other dialects fall back to gorm AutoMigrate.
func MigrateDatabase(db *gorm.DB, dialect string, log logrus.FieldLogger) error {
	if dialect != DialectMySQL {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		log.WithField("dialect", dialect).Info("Schema auto-migrated")
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	driver, err := migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	// m.Close would also close the shared *sql.DB, so only the source is released
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, DialectMySQL, driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration version: %w", err)
	}
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Database migrations applied")
	return nil
}
