// Package database opens the live Postgres backend.
package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"teranga-build/portal/portal-backend/internal/config"
	"teranga-build/portal/portal-backend/internal/portal"
)

// Connection bundles the two views of one pool: gorm for schema management
// and sqlx for the repository queries.
type Connection struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

// Open connects to the backend and, when enabled, migrates the schema.
func Open(backend config.BackendConfig, db config.DatabaseConfig, logger *zap.Logger) (*Connection, error) {
	gdb, err := gorm.Open(postgres.Open(backend.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(db.MaxConnections)
	sqlDB.SetMaxIdleConns(db.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(db.MaxLifetime)

	if db.AutoMigrate {
		if err := gdb.AutoMigrate(portal.AllModels()...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema migrated", zap.Int("tables", len(portal.AllModels())))
	}

	return &Connection{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, "postgres")}, nil
}

// Close releases the pool.
func (c *Connection) Close() error {
	return c.SQL.Close()
}

// NewBackend returns the portal backend selected by the configuration: the
// in-memory fixture dataset when the backend URL or key is missing, Postgres
// otherwise. The returned close function is never nil when err is nil.
func NewBackend(backend config.BackendConfig, db config.DatabaseConfig, logger *zap.Logger) (portal.Backend, func() error, error) {
	if backend.FixtureMode() {
		logger.Warn("Backend URL or key missing, serving the demo dataset")
		return portal.NewFixtureRepository(), func() error { return nil }, nil
	}
	conn, err := Open(backend, db, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to database")
	return portal.NewPostgresRepository(conn.SQL), conn.Close, nil
}
