package database

import (
	"fmt"
	"net/url"

	"cogi/internal/config"
)

// DSN returns the gorm connection string for the configured driver.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	case "sqlite":
		return cfg.Path + "?_foreign_keys=on&_busy_timeout=5000", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// MigrateURL returns the golang-migrate database URL. Only postgres schemas
// are managed through SQL migrations.
func MigrateURL(cfg config.DatabaseConfig) (string, error) {
	if cfg.Driver != "postgres" {
		return "", fmt.Errorf("sql migrations are only supported for postgres, got %q", cfg.Driver)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String(), nil
}
