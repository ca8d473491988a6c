/*
memory.go - In-memory Store implementation (for testing/dev)

PURPOSE:
  Behaves like the file store, including chain linkage and fail-fast
  verification, but keeps records in a slice. Used by unit tests and the
  graph builder's tests where a ledger file would be noise.
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is an in-memory QueryStore. Appends are serialized with a
// mutex exactly like the file store; reads copy out under a read lock.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetClock overrides the timestamp source. For tests.
func (m *MemoryStore) SetClock(now func() time.Time) { m.now = now }

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, in AppendInput) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *string
	if len(m.records) > 0 {
		prev = &m.records[len(m.records)-1].RecordHash
	}

	rec := Record{
		BatchID:          in.BatchID,
		Timestamp:        NewTimestamp(m.now()),
		FileID:           in.FileID,
		DocumentMetadata: in.DocumentMetadata,
		ValidationResult: in.ValidationResult,
		PreviousHash:     prev,
	}
	hash, err := ComputeHash(&rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	rec.RecordHash = hash

	m.records = append(m.records, rec)
	out := rec
	return &out, nil
}

// GetByBatchID implements Store.
func (m *MemoryStore) GetByBatchID(_ context.Context, batchID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.records {
		if m.records[i].BatchID == batchID {
			out := m.records[i]
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: batch_id %q", ErrNotFound, batchID)
}

// GetByFileID implements Store.
func (m *MemoryStore) GetByFileID(_ context.Context, fileID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.records {
		if m.records[i].FileID == fileID {
			out := m.records[i]
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: file_id %q", ErrNotFound, fileID)
}

// Recent implements Store.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.records, limit), nil
}

// All implements Store.
func (m *MemoryStore) All(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Query implements QueryStore.
func (m *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRecords(m.records, filter)
}

// Stats implements QueryStore.
func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return computeStats(m.records), nil
}

// VerifyIntegrity implements Store.
func (m *MemoryStore) VerifyIntegrity(_ context.Context) (*IntegrityReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var prev *string
	for i := range m.records {
		rec := m.records[i]
		lineNum := i + 1

		computed, err := ComputeHash(&rec)
		if err != nil {
			return nil, fmt.Errorf("recompute hash at line %d: %w", lineNum, err)
		}
		if computed != rec.RecordHash {
			return invalidReport(i+1, lineNum, "record hash mismatch"), nil
		}
		if !hashesEqual(rec.PreviousHash, prev) {
			return invalidReport(i+1, lineNum, "hash chain broken"), nil
		}
		prev = &m.records[i].RecordHash
	}

	return &IntegrityReport{
		IsValid:        true,
		TotalRecords:   len(m.records),
		CheckedRecords: len(m.records),
	}, nil
}

func invalidReport(total, lineNum int, reason string) *IntegrityReport {
	n := lineNum
	return &IntegrityReport{
		IsValid:            false,
		TotalRecords:       total,
		CheckedRecords:     total,
		FirstInvalidRecord: &n,
		ErrorMessage:       (&CorruptionError{Line: lineNum, Reason: reason}).Error(),
	}
}

// Tamper overwrites a stored record in place. ONLY for integrity tests;
// there is deliberately no equivalent on the file store.
func (m *MemoryStore) Tamper(i int, mutate func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.records[i])
}
