// Package database opens the GORM connection for the configured driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kart-io/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbopts "github.com/kart-io/docqa/pkg/options/database"
)

// Client wraps gorm.DB together with the driver it was opened with.
type Client struct {
	db     *gorm.DB
	driver string
}

// New opens the database selected by opts.Driver and verifies connectivity.
func New(ctx context.Context, opts *dbopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(gormlogger.LogLevel(opts.LogLevel), opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	configurePool(sqlDB, opts)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", opts.Driver, err)
	}

	logger.Infow("Database connected", "driver", opts.Driver)
	return &Client{db: db, driver: opts.Driver}, nil
}

func dialectorFor(opts *dbopts.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case dbopts.DriverSQLite:
		return sqlite.Open(opts.SQLitePath), nil
	case dbopts.DriverMySQL:
		return mysql.Open(opts.MySQL.DSN()), nil
	case dbopts.DriverPostgres:
		return postgres.Open(opts.Postgres.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func configurePool(sqlDB *sql.DB, opts *dbopts.Options) {
	var idle, open int
	var life time.Duration
	switch opts.Driver {
	case dbopts.DriverMySQL:
		idle, open, life = opts.MySQL.MaxIdleConnections, opts.MySQL.MaxOpenConnections, opts.MySQL.MaxConnectionLifeTime
	case dbopts.DriverPostgres:
		idle, open, life = opts.Postgres.MaxIdleConnections, opts.Postgres.MaxOpenConnections, opts.Postgres.MaxConnectionLifeTime
	default:
		// sqlite 单写者
		open = 1
	}
	if idle > 0 {
		sqlDB.SetMaxIdleConns(idle)
	}
	if open > 0 {
		sqlDB.SetMaxOpenConns(open)
	}
	if life > 0 {
		sqlDB.SetConnMaxLifetime(life)
	}
}

// Name returns the driver name.
func (c *Client) Name() string {
	return c.driver
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping checks if the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
