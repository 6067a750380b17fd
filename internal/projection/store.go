package projection

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// Store owns the Projection Store connection. Structurally this follows
// internal/storage.Storage in the teacher repository: a single *sql.DB with
// SetMaxOpenConns(1) (SQLite has exactly one writer) and WAL journalling so
// external readers can run concurrent snapshot reads while the watcher
// holds short per-event transactions (SPEC_FULL.md §5).
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// StoreConfig configures how the Projection Store is opened.
type StoreConfig struct {
	// Path is the SQLite file path. Use ":memory:" for tests.
	Path string
	// LockTimeout bounds the migration advisory lock wait (§5, §7).
	LockTimeout time.Duration
}

// OpenStore opens (creating if necessary) the Projection Store, disables
// foreign keys for the lifetime of the connection (§5 — the mempool's
// synthetic tx_index scheme would otherwise violate them; see SPEC_FULL.md
// §9's open-question note, preserved rather than silently redesigned), and
// applies any outstanding migrations under the advisory lock.
func OpenStore(ctx context.Context, cfg StoreConfig, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Default()
	}
	log = log.Component("projection-store")

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("store: create data directory: %w", err)
			}
		}
	}

	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=0"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := runMigrations(ctx, db, LockConfig{WaitTimeout: cfg.LockTimeout}, log); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, log: log}, nil
}

// DB returns the underlying connection, for packages that issue raw SQL
// (updaters, translator, reconciler) without each needing their own pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the PS connection.
func (s *Store) Close() error {
	return s.db.Close()
}
