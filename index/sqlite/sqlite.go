/*
Package sqlite provides a SQLite-backed lookup index for the ledger.

PURPOSE:
  Implements ledger.Index: a (kind, key) -> byte-offset map beside the
  append-only JSONL file. The JSONL file stays the source of truth for
  hashing and auditing; this index is derived state that turns point
  lookups from full-file scans into one read.

DERIVED-STATE CONTRACT:
  - The index can be dropped and rebuilt from the ledger file at any time
    (FileStore.RebuildIndex).
  - First write wins for a duplicated key, matching the store's
    earliest-append-wins lookup semantics.
  - An index failure degrades lookups to a scan; it never fails an append.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  idx, err := sqlite.New("./data/ledger-index.db")
  if err != nil {
      log.Fatal(err)
  }
  defer idx.Close()

  store, err := ledger.NewFileStore(path, ledger.WithIndex(idx))

SEE ALSO:
  - ledger/file.go: Index interface and fallback behavior
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const (
	kindBatch = "batch_id"
	kindFile  = "file_id"
)

// Index implements ledger.Index using SQLite.
type Index struct {
	db *sql.DB
}

// New creates a SQLite index at the given database path.
// Use ":memory:" for an in-memory index.
func New(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate index database: %w", err)
	}
	return idx, nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) migrate() error {
	schema := `
	-- Byte offsets of ledger records by lookup key.
	CREATE TABLE IF NOT EXISTS ledger_offsets (
		kind   TEXT NOT NULL,
		key    TEXT NOT NULL,
		offset INTEGER NOT NULL,
		PRIMARY KEY (kind, key)
	);`
	_, err := i.db.Exec(schema)
	return err
}

// Put records the offsets for a newly appended record.
// INSERT OR IGNORE keeps the earliest offset for a duplicated key.
func (i *Index) Put(ctx context.Context, batchID, fileID string, offset int64) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insert = `INSERT OR IGNORE INTO ledger_offsets (kind, key, offset) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, kindBatch, batchID, offset); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insert, kindFile, fileID, offset); err != nil {
		return err
	}
	return tx.Commit()
}

// BatchOffset returns the offset for a batch ID, if indexed.
func (i *Index) BatchOffset(ctx context.Context, batchID string) (int64, bool, error) {
	return i.offset(ctx, kindBatch, batchID)
}

// FileOffset returns the offset for a file ID, if indexed.
func (i *Index) FileOffset(ctx context.Context, fileID string) (int64, bool, error) {
	return i.offset(ctx, kindFile, fileID)
}

func (i *Index) offset(ctx context.Context, kind, key string) (int64, bool, error) {
	var offset int64
	err := i.db.QueryRowContext(ctx,
		`SELECT offset FROM ledger_offsets WHERE kind = ? AND key = ?`, kind, key,
	).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return offset, true, nil
}

// Reset clears the index before a rebuild.
func (i *Index) Reset(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM ledger_offsets`)
	return err
}
