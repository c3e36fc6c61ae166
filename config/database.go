package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported SQL dialects
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// defaultDatabaseURL is used in development when DATABASE_URL is not set
const defaultDatabaseURL = "root:root@tcp(localhost:3306)/seven_four_clothing"

var DB *gorm.DB

// DetectDialect picks the gorm dialect from the shape of the database URL.
// postgres:// and postgresql:// URLs select Postgres, everything else is a MySQL DSN.
func DetectDialect(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return DialectPostgres
	}
	return DialectMySQL
}

// MySQLDSN normalizes a MySQL DSN (optionally prefixed with mysql://) so times are
// parsed, stored in UTC and migration files may hold several statements.
func MySQLDSN(databaseURL string) (string, error) {
	dsn := strings.TrimPrefix(databaseURL, "mysql://")

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}

	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.Loc = time.UTC
	// The driver keeps a parsed charset out of Params, so look at the raw DSN
	if !strings.Contains(dsn, "charset=") {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["charset"] = "utf8mb4"
	}

	return cfg.FormatDSN(), nil
}

// ConnectDatabase establishes a connection to the configured database
func ConnectDatabase(cfg *Config, log logrus.FieldLogger) error {
	databaseURL := cfg.DatabaseURL
	if databaseURL == "" {
		databaseURL = defaultDatabaseURL
		log.Warn("DATABASE_URL not set, using local default")
	}

	var dialector gorm.Dialector
	switch DetectDialect(databaseURL) {
	case DialectPostgres:
		dialector = postgres.Open(databaseURL)
	default:
		dsn, err := MySQLDSN(databaseURL)
		if err != nil {
			return err
		}
		dialector = gormmysql.Open(dsn)
	}

	gormLogLevel := logger.Warn
	if cfg.IsDevelopment() {
		gormLogLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Connection pool
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = db
	log.WithField("dialect", DetectDialect(databaseURL)).Info("Database connection established")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
