package ledger

import "errors"

// Error categories surfaced to callers. Operations wrap these with context so
// the HTTP layer can map them to a status with errors.Is.
var (
	// ErrValidation covers rejected input: non-positive amounts, overpayment.
	ErrValidation = errors.New("validation failed")

	// ErrConflict covers state conflicts: duplicate member ID, issuing a
	// second active loan.
	ErrConflict = errors.New("conflict")

	// ErrNotFound covers lookups of unknown members or loans.
	ErrNotFound = errors.New("not found")
)
