/*
file.go - JSONL append-only file store

PURPOSE:
  The production Store implementation. One UTF-8 JSON object per line,
  append-only, hash-chained. The file is the source of truth for hashing and
  auditing; any index or cache in front of it is derived, rebuildable state.

CRITICAL SECTION:
  Reading the tail hash and writing the new record is ONE serialized step.
  If two appends interleaved their tail-read with another's write, two
  records could claim the same previous_hash and silently fork the chain.
  A single mutex guards "read tail -> build record -> write -> sync ->
  update tail cache". Readers never take the write lock.

DURABILITY:
  A record is written as a single Write call of the full line followed by
  fsync. On a partial write the file is truncated back to its prior size, so
  readers observe either the complete prior state or the complete new state,
  never a half line.

INDEX:
  An optional key->byte-offset index accelerates point lookups. Index writes
  are best-effort: a failed index write degrades that key to a linear scan
  but never fails the append. The index can be rebuilt from the file at any
  time.

SEE ALSO:
  - codec.go: Line format and hashing
  - memory.go: In-memory equivalent for tests
  - watcher.go: Out-of-band tamper detection
*/
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veritrail/ledger-engine/metrics"
)

// =============================================================================
// INDEX - Optional key->offset lookup acceleration
// =============================================================================

// Index maps batch IDs and file IDs to byte offsets in the ledger file.
// First write wins for a duplicated key, matching earliest-append-wins
// lookup semantics.
type Index interface {
	Put(ctx context.Context, batchID, fileID string, offset int64) error
	BatchOffset(ctx context.Context, batchID string) (offset int64, ok bool, err error)
	FileOffset(ctx context.Context, fileID string) (offset int64, ok bool, err error)

	// Reset clears the index before a rebuild.
	Reset(ctx context.Context) error
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore is the JSONL file implementation of QueryStore.
type FileStore struct {
	path    string
	logger  *slog.Logger
	index   Index
	metrics *metrics.Metrics
	now     func() time.Time

	// mu serializes the tail-read-then-write critical section.
	mu       sync.Mutex
	tail     *string // record_hash of the last record, nil for empty ledger
	tailInit bool

	// size is the file size after the last completed append. The tamper
	// watcher compares it against what is actually on disk.
	size atomic.Int64
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// WithIndex attaches a key->offset lookup index.
func WithIndex(idx Index) Option {
	return func(s *FileStore) { s.index = idx }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *FileStore) { s.metrics = m }
}

// WithClock overrides the timestamp source. For tests.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore opens (creating if necessary) the ledger file at path.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("stat ledger: %w", err)
	}
	s.size.Store(info.Size())

	s.logger.Info("ledger opened", "path", path, "size_bytes", info.Size())
	return s, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string { return s.path }

// ExpectedSize returns the file size after the last completed append.
func (s *FileStore) ExpectedSize() int64 { return s.size.Load() }

// =============================================================================
// APPEND - The only write operation
// =============================================================================

// Append implements Store. See store.go for the contract.
func (s *FileStore) Append(ctx context.Context, in AppendInput) (*Record, error) {
	start := s.now()

	// Critical section: tail read and write must not interleave with
	// another append. Cancellation is deliberately not honored past this
	// point; an abandoned half-append would leave the tail ambiguous.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTailLocked(); err != nil {
		s.metrics.ObserveAppend(time.Since(start), err)
		return nil, err
	}

	rec := &Record{
		BatchID:          in.BatchID,
		Timestamp:        NewTimestamp(s.now()),
		FileID:           in.FileID,
		DocumentMetadata: in.DocumentMetadata,
		ValidationResult: in.ValidationResult,
		PreviousHash:     s.tail,
	}
	hash, err := ComputeHash(rec)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrAppendFailed, err)
		s.metrics.ObserveAppend(time.Since(start), err)
		return nil, err
	}
	rec.RecordHash = hash

	line, err := MarshalLine(rec)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrAppendFailed, err)
		s.metrics.ObserveAppend(time.Since(start), err)
		return nil, err
	}

	offset, err := s.writeLineLocked(line)
	if err != nil {
		s.metrics.ObserveAppend(time.Since(start), err)
		return nil, err
	}

	s.tail = &rec.RecordHash
	s.size.Store(offset + int64(len(line)))

	if s.index != nil {
		// Best-effort: the index is derived state and rebuildable; an index
		// failure must not fail an already durable append.
		if err := s.index.Put(ctx, rec.BatchID, rec.FileID, offset); err != nil {
			s.logger.Warn("index write failed, lookups fall back to scan",
				"batch_id", rec.BatchID, "error", err)
		}
	}

	s.logger.Info("ledger record appended",
		"batch_id", rec.BatchID, "file_id", rec.FileID, "risk_level", rec.ValidationResult.RiskLevel)
	s.metrics.ObserveAppend(time.Since(start), nil)
	return rec, nil
}

// writeLineLocked appends one full line and syncs. Returns the byte offset
// the line was written at. On failure the file is truncated back so no
// partial line is visible.
func (s *FileStore) writeLineLocked(line []byte) (int64, error) {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	offset := info.Size()

	if _, err := f.Write(line); err != nil {
		// Roll back any partial write so readers never see a half line.
		_ = f.Truncate(offset)
		return 0, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Truncate(offset)
		return 0, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return offset, nil
}

// ensureTailLocked loads the hash of the last record on first use.
// An unparseable tail is fatal: appending after it would knowingly extend a
// corrupt chain.
func (s *FileStore) ensureTailLocked() error {
	if s.tailInit {
		return nil
	}

	var lastLine []byte
	var lastNum int
	err := s.scan(func(lineNum int, _ int64, line []byte) (bool, error) {
		lastLine = append(lastLine[:0], line...)
		lastNum = lineNum
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	if lastLine == nil {
		s.tail = nil
		s.tailInit = true
		return nil
	}

	rec, err := UnmarshalRecord(lastLine)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, &CorruptionError{Line: lastNum, Reason: "malformed record"})
	}
	s.tail = &rec.RecordHash
	s.tailInit = true
	return nil
}

// =============================================================================
// READS - Tolerant of corrupt lines
// =============================================================================

// GetByBatchID implements Store.
func (s *FileStore) GetByBatchID(ctx context.Context, batchID string) (*Record, error) {
	rec, err := s.lookup(ctx, "batch_id", batchID, func(r *Record) bool { return r.BatchID == batchID },
		func(ctx context.Context) (int64, bool, error) {
			if s.index == nil {
				return 0, false, nil
			}
			return s.index.BatchOffset(ctx, batchID)
		})
	s.metrics.ObserveLookup("batch_id", lookupOutcome(err))
	return rec, err
}

// GetByFileID implements Store.
func (s *FileStore) GetByFileID(ctx context.Context, fileID string) (*Record, error) {
	rec, err := s.lookup(ctx, "file_id", fileID, func(r *Record) bool { return r.FileID == fileID },
		func(ctx context.Context) (int64, bool, error) {
			if s.index == nil {
				return 0, false, nil
			}
			return s.index.FileOffset(ctx, fileID)
		})
	s.metrics.ObserveLookup("file_id", lookupOutcome(err))
	return rec, err
}

// lookupOutcome maps a lookup result to its metric outcome. A missing record
// and a failed read are different operational signals.
func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.LookupFound
	case IsNotFound(err):
		return metrics.LookupNotFound
	default:
		return metrics.LookupError
	}
}

func (s *FileStore) lookup(ctx context.Context, kind, key string, match func(*Record) bool,
	indexed func(context.Context) (int64, bool, error)) (*Record, error) {

	// Indexed fast path. A stale or unreadable index degrades to a scan.
	offset, ok, err := indexed(ctx)
	if err != nil {
		s.logger.Warn("index lookup failed, falling back to scan", "kind", kind, "error", err)
	} else if ok {
		if rec, err := s.readAt(offset); err == nil && match(rec) {
			return rec, nil
		}
		s.logger.Warn("index entry stale, falling back to scan", "kind", kind, "key", key)
	}

	var found *Record
	err = s.scan(func(_ int, _ int64, line []byte) (bool, error) {
		rec, err := UnmarshalRecord(line)
		if err != nil {
			return true, nil // tolerant read: skip corrupt line
		}
		if match(rec) {
			found = rec
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, key)
	}
	return found, nil
}

// readAt parses the record starting at the given byte offset.
func (s *FileStore) readAt(offset int64) (*Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	line, err := bufio.NewReaderSize(f, 64*1024).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return UnmarshalRecord(bytes.TrimSpace(line))
}

// Recent implements Store.
func (s *FileStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(records, limit), nil
}

// All implements Store.
func (s *FileStore) All(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []Record
	err := s.scan(func(_ int, _ int64, line []byte) (bool, error) {
		rec, err := UnmarshalRecord(line)
		if err != nil {
			return true, nil // tolerant read: skip corrupt line
		}
		records = append(records, *rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Query implements QueryStore.
func (s *FileStore) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(records, filter)
}

// Stats implements QueryStore.
func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return computeStats(records), nil
}

// scan streams non-blank ledger lines to fn, tracking 1-based line numbers
// (blank lines advance the counter) and byte offsets. fn returns false to
// stop early.
func (s *FileStore) scan(fn func(lineNum int, offset int64, line []byte) (bool, error)) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 256*1024)
	var offset int64
	lineNum := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				cont, fnErr := fn(lineNum, offset, trimmed)
				if fnErr != nil {
					return fnErr
				}
				if !cont {
					return nil
				}
			}
			offset += int64(len(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read ledger: %w", err)
		}
	}
}

// =============================================================================
// INTEGRITY VERIFICATION - Fail-fast full-chain audit
// =============================================================================

// VerifyIntegrity implements Store. The scan aborts with ctx.Err() if the
// context is cancelled; a partial scan is never reported as a conclusive
// "valid".
func (s *FileStore) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	start := s.now()
	s.logger.Info("ledger integrity check started", "path", s.path)

	total := 0
	var prev *string
	var report *IntegrityReport

	fail := func(lineNum int, reason string) *IntegrityReport {
		n := lineNum
		return &IntegrityReport{
			IsValid:            false,
			TotalRecords:       total,
			CheckedRecords:     total,
			FirstInvalidRecord: &n,
			ErrorMessage:       (&CorruptionError{Line: lineNum, Reason: reason}).Error(),
		}
	}

	err := s.scan(func(lineNum int, _ int64, line []byte) (bool, error) {
		if lineNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}

		rec, err := UnmarshalRecord(line)
		if err != nil {
			report = fail(lineNum, "malformed record")
			return false, nil
		}
		total++

		computed, err := ComputeHash(rec)
		if err != nil {
			return false, fmt.Errorf("recompute hash at line %d: %w", lineNum, err)
		}
		if computed != rec.RecordHash {
			report = fail(lineNum, "record hash mismatch")
			return false, nil
		}

		if !hashesEqual(rec.PreviousHash, prev) {
			report = fail(lineNum, "hash chain broken")
			return false, nil
		}

		prev = &rec.RecordHash
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if report == nil {
		report = &IntegrityReport{IsValid: true, TotalRecords: total, CheckedRecords: total}
		s.logger.Info("ledger integrity check passed", "records", total)
	} else {
		s.logger.Error("ledger integrity violation",
			"line", *report.FirstInvalidRecord, "error", report.ErrorMessage)
	}
	s.metrics.ObserveIntegrity(time.Since(start), report.IsValid)
	return report, nil
}

func hashesEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// =============================================================================
// INDEX REBUILD
// =============================================================================

// RebuildIndex repopulates the attached index from the ledger file.
// Corrupt lines are skipped; they are VerifyIntegrity's concern.
func (s *FileStore) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	count := 0
	err := s.scan(func(_ int, offset int64, line []byte) (bool, error) {
		rec, err := UnmarshalRecord(line)
		if err != nil {
			return true, nil
		}
		if err := s.index.Put(ctx, rec.BatchID, rec.FileID, offset); err != nil {
			return false, fmt.Errorf("index put: %w", err)
		}
		count++
		return true, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("ledger index rebuilt", "records", count)
	return nil
}
