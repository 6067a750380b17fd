package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/klingon-exchange/ledger-watcher/pkg/logging"
)

// LockConfig controls how long the migration applier waits for the PS
// advisory lock before concluding it is stale and breaking it
// (SPEC_FULL.md §5, §7 "MigrationLock held").
type LockConfig struct {
	// WaitTimeout bounds how long acquireLock retries before breaking a
	// held lock. Zero selects a 30s default.
	WaitTimeout time.Duration
}

func (c LockConfig) waitTimeout() time.Duration {
	if c.WaitTimeout <= 0 {
		return 30 * time.Second
	}
	return c.WaitTimeout
}

// acquireLock obtains the PS single-writer advisory lock, returning the
// holder id this process registered and a release function. It is a plain
// table-row lock rather than a database-engine advisory lock primitive,
// because SQLite has none; the row doubles as an operator-visible record of
// which process last held it (holder is a google/uuid, loggable alongside
// "schema lock stale, breaking" diagnostics).
func acquireLock(ctx context.Context, db *sql.DB, cfg LockConfig, log *logging.Logger) (holder string, release func(), err error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_lock (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			holder TEXT NOT NULL,
			acquired_at INTEGER NOT NULL
		)`); err != nil {
		return "", nil, fmt.Errorf("migration lock: create table: %w", err)
	}

	holder = uuid.NewString()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = cfg.waitTimeout()

	acquired := false
	op := func() error {
		res, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO schema_lock (id, holder, acquired_at) VALUES (1, ?, ?)`,
			holder, time.Now().Unix())
		if err != nil {
			return backoff.Permanent(fmt.Errorf("migration lock: insert: %w", err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("migration lock: rows affected: %w", err))
		}
		if n == 1 {
			acquired = true
			return nil
		}
		return ErrMigrationLockTimeout
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil && !acquired {
		log.Warnf("migration lock held by another process past %s, breaking stale lock", cfg.waitTimeout())
		if _, err := db.ExecContext(ctx,
			`UPDATE schema_lock SET holder = ?, acquired_at = ? WHERE id = 1`,
			holder, time.Now().Unix()); err != nil {
			return "", nil, fmt.Errorf("migration lock: break stale lock: %w", err)
		}
	}

	release = func() {
		_, _ = db.Exec(`DELETE FROM schema_lock WHERE id = 1 AND holder = ?`, holder)
	}
	return holder, release, nil
}
