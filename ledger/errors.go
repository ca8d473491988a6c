/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  The boundary layer maps these to API responses; nothing here knows HTTP.

ERROR CATEGORIES:
  1. StorageFailure - I/O errors during append or read (surfaced, never retried silently)
  2. Corruption     - Unparseable lines or hash/chain mismatches (reported, never repaired)
  3. NotFound       - No record matches the requested key (a client condition, not a fault)

USAGE:
  if ledger.IsNotFound(err) {
      // map to 404
  }

SEE ALSO:
  - file.go: Raises these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when no record matches the requested
	// batch ID or file ID.
	ErrNotFound = errors.New("record not found")

	// ErrAppendFailed is returned when a record could not be durably written.
	// The append is all-or-nothing: on this error, nothing is visible to readers.
	ErrAppendFailed = errors.New("ledger append failed")

	// ErrCorrupted is returned when the ledger cannot be read at all,
	// for example when the tail record fails to parse during append.
	ErrCorrupted = errors.New("ledger corrupted")

	// ErrInvalidLimit is returned for non-positive or oversized read limits.
	ErrInvalidLimit = errors.New("invalid limit")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CorruptionError pinpoints a corrupt ledger line.
type CorruptionError struct {
	Line   int    // 1-based line number in the ledger file
	Reason string // "malformed record", "record hash mismatch", "hash chain broken"
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s at line %d", e.Reason, e.Line)
}

func (e *CorruptionError) Unwrap() error {
	return ErrCorrupted
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorruption returns true if the error indicates ledger corruption.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupted)
}
