// Package store wires the SQLite persistence layer, translating the
// spec's Mongo-shaped TTL collections into tables with explicit
// created_at/archived_at columns and periodic sweep jobs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// Profile selects the PRAGMA set applied to a database handle, mirroring
// the platform's per-database profile split between write-heavy caches
// and steady-state standard tables.
type Profile string

const (
	// ProfileCache favors throughput over durability: caches are
	// reconstructible from upstream providers on a miss.
	ProfileCache Profile = "cache"
	// ProfileStandard favors durability for jobs/watchlist/market-trend
	// rows, which are not trivially reconstructible.
	ProfileStandard Profile = "standard"
)

// DB wraps a *sql.DB opened against a single SQLite file with a profile's
// PRAGMAs applied.
type DB struct {
	*sql.DB
	Path    string
	Profile Profile
	Name    string
}

// Config describes one database file to open.
type Config struct {
	DataDir string
	Name    string // file name, e.g. "cache.db"
	Profile Profile
}

// Open resolves cfg.Name under cfg.DataDir (or uses it verbatim for
// in-memory "file::memory:" test URIs), applies profile PRAGMAs, and
// verifies connectivity with a bounded ping.
func Open(cfg Config, log zerolog.Logger) (*DB, error) {
	connStr, path, err := buildConnectionString(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", cfg.Name, err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging sqlite db %s: %w", cfg.Name, err)
	}

	if err := applyRuntimePragmas(sqlDB, cfg.Profile); err != nil {
		return nil, fmt.Errorf("applying pragmas to %s: %w", cfg.Name, err)
	}

	log.Info().Str("db", cfg.Name).Str("profile", string(cfg.Profile)).Str("path", path).Msg("opened database")

	return &DB{DB: sqlDB, Path: path, Profile: cfg.Profile, Name: cfg.Name}, nil
}

func buildConnectionString(cfg Config) (connStr string, path string, err error) {
	if strings.HasPrefix(cfg.Name, "file:") {
		return cfg.Name, cfg.Name, nil
	}

	path = filepath.Join(cfg.DataDir, cfg.Name)
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolving db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", "", fmt.Errorf("creating db dir: %w", err)
	}

	params := []string{"_pragma=journal_mode(WAL)"}
	switch cfg.Profile {
	case ProfileCache:
		params = append(params,
			"_pragma=synchronous(OFF)",
			"_pragma=auto_vacuum(FULL)",
			"_pragma=temp_store(MEMORY)",
		)
	default:
		params = append(params,
			"_pragma=synchronous(NORMAL)",
			"_pragma=auto_vacuum(INCREMENTAL)",
		)
	}

	return absPath + "?" + strings.Join(params, "&"), absPath, nil
}

func applyRuntimePragmas(db *sql.DB, profile Profile) error {
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	if profile == ProfileCache {
		if _, err := db.Exec("PRAGMA wal_autocheckpoint = 1000"); err != nil {
			return err
		}
	}
	return nil
}
