/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication. Ledger records and graphs already
  carry their wire-format tags (the record line format IS the API format,
  by design - auditors verify the same bytes), so DTOs here are the thin
  wrappers around them.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Record wire format
*/
package api

import (
	"github.com/veritrail/ledger-engine/ledger"
)

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// UploadResponse is returned after a successful upload + validation + append.
type UploadResponse struct {
	Record      *ledger.Record `json:"record"`
	StoragePath string         `json:"storage_path"`
}

// RecordsResponse wraps a bounded list of ledger records.
type RecordsResponse struct {
	Records []ledger.Record `json:"records"`
	Count   int             `json:"count"`
}

// StatsResponse summarizes the ledger.
type StatsResponse struct {
	TotalRecords      int            `json:"total_records"`
	AnomalyCount      int            `json:"anomaly_count"`
	RiskLevels        map[string]int `json:"risk_levels"`
	AverageFraudScore float64        `json:"average_fraud_score"`
}

// IntegrityStatusResponse is the last background audit outcome.
type IntegrityStatusResponse struct {
	Report    *ledger.IntegrityReport `json:"report"`
	CheckedAt string                  `json:"checked_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status      string `json:"status"`
	AppName     string `json:"app_name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}
