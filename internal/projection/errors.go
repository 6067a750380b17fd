package projection

import "errors"

// Sentinel errors for expected, branch-on-able conditions. Mirrors the
// package-level error-variable style internal/storage uses in the teacher
// repository (ErrOrderNotFound, ErrOrderExpired).
var (
	// ErrUnknownEventShape means the translator has no id-field set for an
	// event kind it was asked to apply. Fatal: ledger/projection version
	// mismatch (SPEC_FULL.md §7).
	ErrUnknownEventShape = errors.New("projection: unknown event shape")

	// ErrRollbackTargetMissing means unapply of an insert could not find the
	// row it is supposed to delete by insert_rowid. Fatal: projection
	// corrupted.
	ErrRollbackTargetMissing = errors.New("projection: rollback target missing")

	// ErrNoEvent is the sentinel "no event to parse" condition. Per
	// SPEC_FULL.md §9, this replaces the source's exception-for-control-flow
	// with an ordinary not-found signal, surfaced by the ledger reader as
	// (_, false, nil) rather than as this error; it exists for callers that
	// need an error value (e.g. wrapped conditions).
	ErrNoEvent = errors.New("projection: no event available")

	// ErrMigrationLockTimeout is the lock acquirer's internal retry signal
	// while the advisory lock is held by another holder. It is not returned
	// to callers: once the wait times out, the lock is broken and taken.
	ErrMigrationLockTimeout = errors.New("projection: migration lock timeout")

	// ErrMigrationHashMismatch means a previously applied migration's
	// recorded content hash no longer matches the compiled-in SQL for that
	// version (SPEC_FULL.md §6.2, scenario S7).
	ErrMigrationHashMismatch = errors.New("projection: migration content hash mismatch")
)

// UniquenessViolation wraps a SQLite uniqueness constraint failure, naming
// the column involved. RebuildMempool does not construct it: it classifies
// the driver error directly (isUniquenessViolation, isTxIndexViolation).
type UniquenessViolation struct {
	Column string
	Err    error
}

func (e *UniquenessViolation) Error() string {
	return "projection: uniqueness violation on " + e.Column + ": " + e.Err.Error()
}

func (e *UniquenessViolation) Unwrap() error {
	return e.Err
}
