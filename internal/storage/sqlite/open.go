// Package sqlite is the SQLite-backed implementation of storage.Storage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/savecontext/savecontext/internal/storage"
)

// Compile-time conformance check: Store must implement the full
// storage.Storage contract.
var _ storage.Storage = (*Store)(nil)

// Store is the SQLite-backed storage.Storage implementation. One Store
// owns one connection pool against one database file; it is not
// thread-shared (spec.md §5) beyond what database/sql's own pool permits
// for read concurrency under WAL.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the database at path, sets the
// connection pragmas mandated by spec.md §5 (WAL, foreign keys, normal
// synchronous, 64 MiB cache, memory temp store, busy timeout), and runs
// the migration ladder.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying base schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

func (s *Store) UnderlyingDB() *sql.DB { return s.db }

func nowMillis() int64 { return time.Now().UnixMilli() }
