package database

import (
	"errors"
	"fmt"
	"time"

	"cogi/internal/config"
	"cogi/internal/logger"
	"cogi/internal/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Manager handles database operations
type Manager struct {
	db  *gorm.DB
	cfg config.DatabaseConfig
}

// NewManager opens the configured relational store. The same models and
// services run on every driver; only the dialector differs.
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // Required for pgbouncer-style poolers; harmless for direct connections
		})
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Manager{db: db, cfg: cfg}, nil
}

// RunMigrations brings the schema up to date. Postgres applies the SQL files
// in the migrations directory; mysql and sqlite use gorm AutoMigrate.
func (m *Manager) RunMigrations() error {
	log := logger.Get()
	log.Infow("Running database migrations...", "driver", m.cfg.Driver)

	if m.cfg.Driver != "postgres" {
		if err := m.db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto migration failed: %w", err)
		}
		log.Info("Database migrations completed successfully")
		return nil
	}

	mig, err := m.Migrator()
	if err != nil {
		return err
	}
	defer closeMigrator(mig)

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// Migrator returns a golang-migrate instance over the migrations directory.
// The caller must close it.
func (m *Manager) Migrator() (*migrate.Migrate, error) {
	dbURL, err := MigrateURL(m.cfg)
	if err != nil {
		return nil, err
	}
	mig, err := migrate.New("file://"+m.cfg.MigrationsDir, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mig, nil
}

// CloseMigrator releases a migrator returned by Migrator.
func CloseMigrator(mig *migrate.Migrate) {
	closeMigrator(mig)
}

func closeMigrator(mig *migrate.Migrate) {
	srcErr, dbErr := mig.Close()
	if srcErr != nil {
		logger.Get().Warnf("migrate source close error: %v", srcErr)
	}
	if dbErr != nil {
		logger.Get().Warnf("migrate database close error: %v", dbErr)
	}
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Driver returns the configured driver name.
func (m *Manager) Driver() string {
	return m.cfg.Driver
}

// Close closes the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
