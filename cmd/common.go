package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/database/mariadb"
	"github.com/kozaktomas/image-search/internal/database/postgres"
	"github.com/kozaktomas/image-search/internal/database/sqlite"
	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/pixelsource"
)

// errNoCorpus is returned by queries before anything has been indexed.
var errNoCorpus = errors.New("no corpus stored yet; run 'image-search index <dataset.json>' first")

// Opened by openStore when the matching backend is selected.
var (
	mariaPool   *mariadb.Pool
	sqliteStore *sqlite.Store
)

// openStore registers the snapshot backend. The first configured setting
// wins: DATABASE_URL, MARIADB_DSN, SQLITE_PATH, then the JSON file at
// STORE_PATH.
func openStore(ctx context.Context, cfg *config.Config, quiet bool) (database.SnapshotWriter, error) {
	switch {
	case cfg.Database.URL != "":
		if !quiet {
			fmt.Println("Connecting to PostgreSQL database...")
		}
		if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	case cfg.Database.MariaDBDSN != "":
		if !quiet {
			fmt.Println("Connecting to MariaDB database...")
		}
		pool, err := mariadb.Initialize(ctx, cfg.Database.MariaDBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		mariaPool = pool
	case cfg.Database.SQLitePath != "":
		if !quiet {
			fmt.Printf("Using SQLite database %s\n", cfg.Database.SQLitePath)
		}
		store, err := sqlite.Initialize(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		sqliteStore = store
	default:
		database.RegisterFileStore(cfg.Store.Path)
		if !quiet {
			fmt.Printf("Using snapshot file %s\n", cfg.Store.Path)
		}
	}
	return database.GetSnapshotStore(ctx)
}

// closeStore releases any database pool opened by openStore.
func closeStore() {
	if pool := postgres.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if mariaPool != nil {
		if err := mariaPool.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if sqliteStore != nil {
		if err := sqliteStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}

// newEngine builds an engine from the search configuration, reading images
// below IMAGES_ROOT.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	palette, err := cfg.Search.Palette()
	if err != nil {
		return nil, err
	}
	named, err := cfg.Search.NamedPalette()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Palette: palette,
		Named:   named,
		Options: cfg.Search.CorpusOptions(),
		Source: &pixelsource.FileSource{
			Root:         cfg.Images.Root,
			MaxImageSize: cfg.Images.MaxImageSize,
		},
	})
}

// loadEngine builds an engine and restores the stored corpus into it.
func loadEngine(ctx context.Context, cfg *config.Config, quiet bool) (*engine.Engine, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, quiet)
	if err != nil {
		return nil, err
	}
	ok, err := eng.Restore(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to restore corpus: %w", err)
	}
	if !ok {
		return nil, errNoCorpus
	}
	return eng, nil
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
