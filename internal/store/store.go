// Package store is the optional audit-log persistence layer (domain stack
// §B.4): one row per engine invocation, letting a caller list prior
// verdicts for a proxy address. Nothing in the core analysis engine
// depends on this package — it is a pure consumer of engine.Analyze's
// output.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/config"
)

// DB wraps the SQL connection pool used by the audit-log repository.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// New opens a Postgres connection pool per cfg and verifies it with a ping.
func New(cfg config.StoreConfig, logger *slog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping audit store: %w", err)
	}

	logger.Info("audit store connection established", "host", cfg.Host, "database", cfg.Database)
	return &DB{DB: db, logger: logger.With("component", "store")}, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	db.logger.Info("closing audit store connection")
	return db.DB.Close()
}

// HealthCheck verifies the connection is healthy.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
