/*
codec.go - Canonical record encoding and hashing

PURPOSE:
  Turns a record into a deterministic byte representation and computes its
  SHA-256 content hash. The hash is the interoperability contract with
  auditors: two logically-equal records must canonicalize to byte-identical
  output across processes and implementations.

CANONICAL FORM:
  - Compact JSON, no insignificant whitespace
  - Object keys in ascending lexicographic order
  - Timestamps rendered as ISO-8601 UTC with microsecond precision
  - record_hash excluded from its own input
  - previous_hash serialized as null for the genesis record
  - dates always serialized as an array (empty, never null)
  - No HTML escaping (filenames with & or < hash as written)

  Key ordering is enforced by struct field declaration order below, which
  encoding/json preserves. Any new record field MUST be inserted in sorted
  position in BOTH the canonical structs and the persisted line struct.

SEE ALSO:
  - types.go: Record definition
  - file.go: Writes MarshalLine output, verifies with ComputeHash
*/
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// =============================================================================
// CANONICAL STRUCTS - Field order IS the sorted key order
// =============================================================================

type canonicalEntities struct {
	BatchID       *string  `json:"batch_id"`
	CertificateID *string  `json:"certificate_id"`
	Dates         []string `json:"dates"`
	Exporter      *string  `json:"exporter"`
	Quantity      *string  `json:"quantity"`
}

type canonicalMetadata struct {
	DocumentType      string            `json:"document_type"`
	ExtractedEntities canonicalEntities `json:"extracted_entities"`
	FileSize          int64             `json:"file_size"`
	MimeType          string            `json:"mime_type"`
	OriginalFilename  string            `json:"original_filename"`
}

type canonicalValidation struct {
	FraudScore         float64 `json:"fraud_score"`
	IsAnomaly          bool    `json:"is_anomaly"`
	RiskLevel          string  `json:"risk_level"`
	RuleViolationCount int     `json:"rule_violation_count"`
}

// canonicalRecord is the hash input: every record field except record_hash.
type canonicalRecord struct {
	BatchID          string              `json:"batch_id"`
	DocumentMetadata canonicalMetadata   `json:"document_metadata"`
	FileID           string              `json:"file_id"`
	PreviousHash     *string             `json:"previous_hash"`
	Timestamp        string              `json:"timestamp"`
	ValidationResult canonicalValidation `json:"validation_result"`
}

// persistedRecord is one ledger line: the canonical fields plus record_hash,
// still in sorted key order so the stored line doubles as canonical output.
type persistedRecord struct {
	BatchID          string              `json:"batch_id"`
	DocumentMetadata canonicalMetadata   `json:"document_metadata"`
	FileID           string              `json:"file_id"`
	PreviousHash     *string             `json:"previous_hash"`
	RecordHash       string              `json:"record_hash"`
	Timestamp        string              `json:"timestamp"`
	ValidationResult canonicalValidation `json:"validation_result"`
}

func toCanonical(r *Record) canonicalRecord {
	return canonicalRecord{
		BatchID: r.BatchID,
		DocumentMetadata: canonicalMetadata{
			DocumentType: r.DocumentMetadata.DocumentType,
			ExtractedEntities: canonicalEntities{
				BatchID:       r.DocumentMetadata.ExtractedEntities.BatchID,
				CertificateID: r.DocumentMetadata.ExtractedEntities.CertificateID,
				Dates:         nonNilDates(r.DocumentMetadata.ExtractedEntities.Dates),
				Exporter:      r.DocumentMetadata.ExtractedEntities.Exporter,
				Quantity:      r.DocumentMetadata.ExtractedEntities.Quantity,
			},
			FileSize:         r.DocumentMetadata.FileSize,
			MimeType:         r.DocumentMetadata.MimeType,
			OriginalFilename: r.DocumentMetadata.OriginalFilename,
		},
		FileID:       r.FileID,
		PreviousHash: r.PreviousHash,
		Timestamp:    r.Timestamp.Canonical(),
		ValidationResult: canonicalValidation{
			FraudScore:         r.ValidationResult.FraudScore,
			IsAnomaly:          r.ValidationResult.IsAnomaly,
			RiskLevel:          r.ValidationResult.RiskLevel,
			RuleViolationCount: r.ValidationResult.RuleViolationCount,
		},
	}
}

func nonNilDates(dates []string) []string {
	if dates == nil {
		return []string{}
	}
	return dates
}

// encodeCompact marshals v as compact JSON without HTML escaping and without
// a trailing newline.
func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// =============================================================================
// PUBLIC API
// =============================================================================

// Canonicalize returns the deterministic byte encoding of the record with
// record_hash excluded. Equal field values always yield identical bytes.
func Canonicalize(r *Record) ([]byte, error) {
	return encodeCompact(toCanonical(r))
}

// ComputeHash returns the SHA-256 of the canonical bytes as 64 lowercase hex
// characters. RecordHash on the input is ignored.
func ComputeHash(r *Record) (string, error) {
	canonical, err := Canonicalize(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalLine renders the record as one persisted ledger line, including the
// trailing newline. The line is canonical: parsing it back and re-marshaling
// yields identical bytes.
func MarshalLine(r *Record) ([]byte, error) {
	canonical := toCanonical(r)
	line := persistedRecord{
		BatchID:          canonical.BatchID,
		DocumentMetadata: canonical.DocumentMetadata,
		FileID:           canonical.FileID,
		PreviousHash:     canonical.PreviousHash,
		RecordHash:       r.RecordHash,
		Timestamp:        canonical.Timestamp,
		ValidationResult: canonical.ValidationResult,
	}
	compact, err := encodeCompact(line)
	if err != nil {
		return nil, err
	}
	return append(compact, '\n'), nil
}

// UnmarshalRecord parses one ledger line into a Record.
func UnmarshalRecord(line []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
