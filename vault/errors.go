package vault

import "errors"

// Failure kinds surfaced by the vault. Every public operation returns
// either a definite success value or one of these, so callers can map
// outcomes to distinct user-visible messages (a bad backup file is not a
// wrong password).
var (
	// ErrWrongPassword means the cipher's integrity check failed during
	// decrypt. A corrupted record surfaces the same way on purpose: the
	// login UX treats both as "wrong password, try again".
	ErrWrongPassword = errors.New("wrong password")

	// ErrNotFound means an operation referenced a wallet id that does not
	// exist.
	ErrNotFound = errors.New("wallet not found")

	// ErrInvalidBackupFormat means a backup blob failed format or version
	// validation before any field was trusted.
	ErrInvalidBackupFormat = errors.New("invalid backup format")

	// ErrStorageFailure means the underlying persistence read or write
	// failed. The in-memory view is never left ahead of the persisted one.
	ErrStorageFailure = errors.New("storage failure")

	// ErrWeakInput means a password or name failed validation. Rejected
	// before any key derivation work is attempted.
	ErrWeakInput = errors.New("weak input")

	// ErrLocked means the session is not unlocked.
	ErrLocked = errors.New("wallet is locked")
)
