package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"rosterd/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	// ErrConnection wraps any failure to reach the database.
	ErrConnection = errors.New("storage: connection failed")
	// ErrSchema wraps a failed table creation.
	ErrSchema = errors.New("storage: schema initialization failed")
)

// Connector opens one database connection per operation. Callers acquire,
// do their work, and release via the returned closer; there is no pooling
// or reuse across operations.
type Connector struct {
	dsn    string
	logger *slog.Logger
}

// NewConnector builds a connector from a validated database config.
func NewConnector(cfg config.DatabaseConfig, logger *slog.Logger) *Connector {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)

	return NewConnectorDSN(dsn, logger)
}

// NewConnectorDSN builds a connector from a raw DSN (useful for testing).
func NewConnectorDSN(dsn string, logger *slog.Logger) *Connector {
	return &Connector{dsn: dsn, logger: logger}
}

// Acquire opens and pings a fresh connection. The caller owns the returned
// DB and must Close it on every exit path.
func (c *Connector) Acquire(ctx context.Context) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(c.dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		c.logger.ErrorContext(ctx, "failed to connect to database", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return db, nil
}

// Do runs fn on a scoped connection, releasing it on all exit paths.
func (c *Connector) Do(ctx context.Context, fn func(ctx context.Context, db *bun.DB) error) error {
	db, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

// EnsureSchema creates the tables for the given bun models if they do not
// exist. Safe to call on every startup.
func (c *Connector) EnsureSchema(ctx context.Context, models ...interface{}) error {
	return c.Do(ctx, func(ctx context.Context, db *bun.DB) error {
		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSchema, err)
			}
		}
		c.logger.InfoContext(ctx, "schema ensured")
		return nil
	})
}
