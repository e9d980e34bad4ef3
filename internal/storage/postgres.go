// Package storage wraps the optional ambient-stack backends (Postgres,
// Redis, MongoDB) the gateway can be wired to for observability —
// metrics, cache-invalidation broadcast, and audit logging. None of
// them are required for the core federation path; the facade runs
// identically with every one of these nil.
//
// Grounded on internal/infrastructure/database's client wrappers in
// the teacher, trimmed of the tenant-schema helpers (CreateTenantSchema,
// GetTenantDB, ...) that belonged to that repo's multi-tenancy model
// and have no place in a federation gateway.
package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres wraps a *gorm.DB used by internal/metrics to persist
// per-request query metrics.
type Postgres struct {
	*gorm.DB
}

// PostgresConfig configures the connection and pool sizing.
type PostgresConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnectionMaxAge   time.Duration
}

// NewPostgres opens a pooled connection and verifies it.
func NewPostgres(config PostgresConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(config.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(config.ConnectionMaxAge)

	return &Postgres{DB: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
