/*
Package ledger provides the append-only, hash-chained record store that backs
document verification.

PURPOSE:
  Every validated supply-chain document produces exactly one ledger record.
  Records are chained by SHA-256 hashes so that any modification of a past
  record is detectable by anyone holding the file, without trusting the
  server operator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: An immutable ledger entry, hash-linked to its predecessor
  - DocumentMetadata / ValidationResult: Summaries persisted with each record
  - ExtractedEntities: Facts a document claims about itself (consistency substrate)
  - IntegrityReport: Outcome of a full-chain audit
  - Timestamp: UTC instant with a fixed canonical rendering

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, records cannot be modified
  3. CHAINED: record[N].previous_hash == record[N-1].record_hash
  4. SELF-DESCRIBING: record_hash covers every field except itself

SEE ALSO:
  - codec.go: Canonical encoding and record hashing
  - store.go: Store interface
  - file.go: JSONL file implementation
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIMESTAMP - UTC instant with fixed canonical rendering
// =============================================================================

// TimeLayout is the canonical timestamp rendering: ISO-8601 UTC with
// microsecond precision. The hash is computed over this exact string, so the
// layout is part of the interoperability contract with auditors.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp wraps time.Time with the canonical wire format.
type Timestamp struct {
	time.Time
}

// NewTimestamp creates a Timestamp normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

// Canonical returns the fixed-precision wire rendering.
func (t Timestamp) Canonical() string {
	return t.UTC().Format(TimeLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Canonical() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// =============================================================================
// RECORD - Single immutable ledger entry
// =============================================================================

// ExtractedEntities holds the structured fields the external parsing pipeline
// pulled out of a document. These are facts the document claims about itself;
// they are independent of the ledger-assigned batch ID and are the substrate
// for cross-document consistency checking.
type ExtractedEntities struct {
	BatchID       *string  `json:"batch_id"`
	Exporter      *string  `json:"exporter"`
	Quantity      *string  `json:"quantity"`
	Dates         []string `json:"dates"`
	CertificateID *string  `json:"certificate_id"`
}

// DocumentMetadata is the subset of upload metadata persisted with a record.
type DocumentMetadata struct {
	OriginalFilename  string            `json:"original_filename"`
	FileSize          int64             `json:"file_size"`
	DocumentType      string            `json:"document_type"`
	MimeType          string            `json:"mime_type"`
	ExtractedEntities ExtractedEntities `json:"extracted_entities"`
}

// ValidationResult is the subset of the scoring outcome persisted with a record.
type ValidationResult struct {
	FraudScore         float64 `json:"fraud_score"`
	RiskLevel          string  `json:"risk_level"`
	IsAnomaly          bool    `json:"is_anomaly"`
	RuleViolationCount int     `json:"rule_violation_count"`
}

// Record is a single immutable ledger entry.
// Once written, this record is permanent and cryptographically linked.
//
// PreviousHash is nil exactly once per ledger: for the genesis record.
type Record struct {
	BatchID          string           `json:"batch_id"`
	Timestamp        Timestamp        `json:"timestamp"`
	FileID           string           `json:"file_id"`
	DocumentMetadata DocumentMetadata `json:"document_metadata"`
	ValidationResult ValidationResult `json:"validation_result"`
	PreviousHash     *string          `json:"previous_hash"`
	RecordHash       string           `json:"record_hash"`
}

// AppendInput carries everything the caller supplies for a new record.
// Timestamp, previous hash and record hash are assigned by the store.
type AppendInput struct {
	BatchID          string
	FileID           string
	DocumentMetadata DocumentMetadata
	ValidationResult ValidationResult
}

// =============================================================================
// INTEGRITY REPORT - Outcome of a full-chain audit
// =============================================================================

// IntegrityReport is the result of a full scan over the ledger.
// Verification is fail-fast: scanning stops at the first violation, and
// FirstInvalidRecord is its 1-based line number in the ledger file.
type IntegrityReport struct {
	IsValid            bool   `json:"is_valid"`
	TotalRecords       int    `json:"total_records"`
	CheckedRecords     int    `json:"checked_records"`
	FirstInvalidRecord *int   `json:"first_invalid_record,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// =============================================================================
// QUERIES AND STATS
// =============================================================================

// QueryFilter narrows a recent-records read.
// A zero filter returns the DefaultQueryLimit newest records.
type QueryFilter struct {
	RiskLevel string
	From      *time.Time
	To        *time.Time
	Limit     int
}

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Stats summarizes the ledger for dashboards and audits.
// AverageFraudScore is aggregated with exact decimal arithmetic so the
// reported average never drifts with ledger size.
type Stats struct {
	TotalRecords      int             `json:"total_records"`
	AnomalyCount      int             `json:"anomaly_count"`
	RiskLevels        map[string]int  `json:"risk_levels"`
	AverageFraudScore decimal.Decimal `json:"average_fraud_score"`
}
