/*
store.go - Persistence interface for ledger records

PURPOSE:
  Defines the interface between callers (upload pipeline, verification API,
  graph builder) and the ledger. The store enforces append-only semantics:
  there is one write operation and no way to mutate or remove a record.

APPEND-ONLY CONTRACT:
  - Append(): The ONLY write operation
  - NO Update() or Delete() methods exist
  - Duplicated batch/file IDs are not rejected here; uniqueness is an
    external policy concern, and point lookups return the earliest match

READ SEMANTICS:
  Reads are tolerant: a corrupt line is skipped during lookups because those
  are advisory queries. VerifyIntegrity is the opposite: a corrupt line is
  the finding.

IMPLEMENTATIONS:
  - file.go:   Production JSONL file store
  - memory.go: In-memory store for tests/dev

SEE ALSO:
  - types.go: Record and report types
  - cache.go: Read-through caching decorator
*/
package ledger

import "context"

// =============================================================================
// STORE - Interface for record persistence (append-only)
// =============================================================================

// Store handles persistence of ledger records.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append assembles a record from the input, links it to the current tail,
	// and durably writes it. All-or-nothing: on error, nothing is visible to
	// subsequent readers. Appends are serialized internally; concurrent calls
	// never fork the chain.
	Append(ctx context.Context, in AppendInput) (*Record, error)

	// GetByBatchID returns the earliest record with the given ledger-assigned
	// batch ID, or ErrNotFound.
	GetByBatchID(ctx context.Context, batchID string) (*Record, error)

	// GetByFileID returns the earliest record with the given content hash,
	// or ErrNotFound.
	GetByFileID(ctx context.Context, fileID string) (*Record, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// All returns every readable record, oldest first.
	// This is the graph builder's data source.
	All(ctx context.Context) ([]Record, error)

	// VerifyIntegrity scans the whole ledger from the beginning, recomputing
	// every record hash and checking the chain linkage. Fail-fast: the report
	// describes the first violation and scanning stops there. A violation is
	// reported in the IntegrityReport, not as an error; the error return is
	// for I/O failures and cancellation only.
	VerifyIntegrity(ctx context.Context) (*IntegrityReport, error)
}

// QueryStore extends Store with filtered reads and aggregation.
type QueryStore interface {
	Store

	// Query returns records matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Record, error)

	// Stats aggregates the whole ledger.
	Stats(ctx context.Context) (*Stats, error)
}
