package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/subprobe/internal/fetch"
)

// FileName is the database file created inside the cache directory.
const FileName = "sources.db"

// SourceCache stores the last downloaded body of each subscription URL
// together with its HTTP validators. The fetch client uses it to send
// conditional requests; it never stores probe results.
type SourceCache struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SourceCache behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the cache database in dir.
func Open(dir string, opts Options) (*SourceCache, error) {
	dbPath := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sc := &SourceCache{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sc.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sc, nil
}

// Path returns the database file path.
func (sc *SourceCache) Path() string {
	return sc.dbPath
}

// Close closes the database connection.
func (sc *SourceCache) Close() error {
	return sc.db.Close()
}

func (sc *SourceCache) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		url TEXT PRIMARY KEY,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`

	_, err := sc.db.ExecContext(context.Background(), schema)
	return err
}

// Lookup implements fetch.Cache.
func (sc *SourceCache) Lookup(ctx context.Context, url string) (fetch.Entry, bool, error) {
	query := `SELECT etag, last_modified, body, fetched_at FROM sources WHERE url = ?`

	var (
		entry     fetch.Entry
		fetchedAt int64
	)
	err := sc.db.QueryRowContext(ctx, query, url).Scan(
		&entry.ETag,
		&entry.LastModified,
		&entry.Body,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fetch.Entry{}, false, nil
	}
	if err != nil {
		return fetch.Entry{}, false, fmt.Errorf("failed to look up source %s: %w", url, err)
	}

	entry.FetchedAt = time.Unix(fetchedAt, 0)
	return entry, true, nil
}

// Store implements fetch.Cache.
func (sc *SourceCache) Store(ctx context.Context, url string, entry fetch.Entry) error {
	query := `
	INSERT INTO sources (url, etag, last_modified, body, fetched_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		etag = excluded.etag,
		last_modified = excluded.last_modified,
		body = excluded.body,
		fetched_at = excluded.fetched_at
	`

	if _, err := sc.db.ExecContext(ctx, query,
		url,
		entry.ETag,
		entry.LastModified,
		entry.Body,
		entry.FetchedAt.Unix(),
	); err != nil {
		return fmt.Errorf("failed to store source %s: %w", url, err)
	}
	return nil
}

// Prune deletes entries fetched before cutoff and returns how many were
// removed. Subscriptions dropped from the list would otherwise stay
// forever.
func (sc *SourceCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := sc.db.ExecContext(ctx, `DELETE FROM sources WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sources: %w", err)
	}
	return result.RowsAffected()
}
