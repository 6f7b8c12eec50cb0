// Package mariadb stores corpus snapshots in MariaDB or MySQL as JSON
// documents.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/image-search/internal/database"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Initialize connects, creates the snapshot table and registers the pool as
// the active snapshot store. The caller closes the returned pool.
func Initialize(ctx context.Context, dsn string) (*Pool, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	database.RegisterSnapshotStore("mariadb", func() database.SnapshotWriter { return pool })
	return pool, nil
}
