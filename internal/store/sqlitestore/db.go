// Package sqlitestore implements store.Store durably over a pure-Go SQLite
// driver, grounded on the same connection-profile approach the rest of the
// codebase uses for its databases.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Profile selects a PRAGMA configuration tuned for the record's durability
// requirements.
type Profile string

const (
	// ProfileLedger is used for position/inventory/locate state: an audit
	// trail that must survive a crash.
	ProfileLedger Profile = "ledger"
	// ProfileCache is used for the dedup window and other ephemeral state.
	ProfileCache Profile = "cache"
	// ProfileStandard is used for reference and rule data.
	ProfileStandard Profile = "standard"
)

// Config describes how to open a database.
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// DB wraps a *sql.DB opened with profile-appropriate PRAGMAs.
type DB struct {
	conn    *sql.DB
	profile Profile
	name    string
}

// Open opens (creating if needed) a SQLite database at cfg.Path.
func Open(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	if !strings.HasPrefix(cfg.Path, "file:") && cfg.Path != ":memory:" {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", buildConnString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Name, err)
	}
	configurePool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database %s: %w", cfg.Name, err)
	}

	db := &DB{conn: conn, profile: cfg.Profile, name: cfg.Name}
	if err := db.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database %s: %w", cfg.Name, err)
	}
	return db, nil
}

func buildConnString(path string, profile Profile) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep + "_pragma=journal_mode(WAL)"
	switch profile {
	case ProfileLedger:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=auto_vacuum(FULL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=busy_timeout(5000)"
	return connStr
}

func configurePool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
	if profile == ProfileCache {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	}
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schemaSQL)
	return err
}

// Conn returns the underlying *sql.DB for repository use.
func (db *DB) Conn() *sql.DB { return db.conn }

// Close closes the connection.
func (db *DB) Close() error { return db.conn.Close() }
