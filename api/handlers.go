/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the verification ledger via REST. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger, graph builder, and
  document service.

ENDPOINTS:
  Upload:
    POST   /api/v1/upload                                Upload + validate + append

  Verification (public traceability, linked from QR codes):
    GET    /api/v1/verify/{batchID}                      Record by batch ID
    GET    /api/v1/verify/file/{fileID}                  Record by content hash
    GET    /api/v1/verify/integrity/check                Full-chain audit
    GET    /api/v1/verify/integrity/last                 Last background audit

  Ledger:
    GET    /api/v1/ledger/records?limit=&risk_level=     Recent records
    GET    /api/v1/ledger/stats                          Aggregates

  Shipments:
    GET    /api/v1/shipments/{shipmentID}/consistency-graph

ERROR HANDLING:
  Typed failures from the core map to HTTP status:
  - NotFound                -> 404 (a client condition, not a server error)
  - upload ValidationError  -> 400 with its stable error code
  - Corruption / storage    -> 500 (and logged; never silently repaired)

SECURITY NOTE:
  Verification endpoints are public by design (records are meant to be
  checked by customers and auditors). Upload and integrity endpoints need
  authentication in production; that layer is external to this module.

SEE ALSO:
  - dto.go: Response structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veritrail/ledger-engine/config"
	"github.com/veritrail/ledger-engine/document"
	"github.com/veritrail/ledger-engine/graph"
	"github.com/veritrail/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.QueryStore
	Files     *document.Service
	Storage   *document.Storage
	Extractor document.Extractor
	Scorer    document.Scorer
	Graph     *graph.Builder
	Scheduler *IntegrityScheduler
	Settings  *config.Settings
	Logger    *slog.Logger
}

// =============================================================================
// UPLOAD
// =============================================================================

// Upload receives a multipart document, validates and stores it, runs the
// external extraction/scoring pipeline, and appends the outcome to the
// ledger under a freshly assigned batch ID.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"", "MISSING_FILE")
		return
	}
	defer file.Close()

	meta, err := h.Files.ProcessUpload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		if ve, ok := document.AsValidationError(err); ok {
			status := http.StatusBadRequest
			if ve.Code == document.CodeFileTooLarge {
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, status, ve.Message, ve.Code)
			return
		}
		h.Logger.Error("upload processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload processing failed", "INTERNAL_ERROR")
		return
	}

	path, err := h.Storage.Path(meta.FileID)
	if err != nil {
		h.Logger.Error("stored file missing after upload", "file_id", meta.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "upload processing failed", "INTERNAL_ERROR")
		return
	}

	entities, err := h.Extractor.Extract(r.Context(), path, meta.DocumentType)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"could not parse document content, the file may be corrupted or not a valid PDF/image/CSV",
			"DOCUMENT_PARSE_FAILED")
		return
	}

	result, err := h.Scorer.Score(r.Context(), path, *meta, entities)
	if err != nil {
		h.Logger.Error("scoring pipeline failed", "file_id", meta.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "document scoring failed", "SCORING_FAILED")
		return
	}

	rec, err := h.Store.Append(r.Context(), ledger.AppendInput{
		BatchID: ledger.NewBatchID(),
		FileID:  meta.FileID,
		DocumentMetadata: ledger.DocumentMetadata{
			OriginalFilename:  meta.OriginalFilename,
			FileSize:          meta.FileSize,
			DocumentType:      string(meta.DocumentType),
			MimeType:          meta.MimeType,
			ExtractedEntities: entities,
		},
		ValidationResult: result,
	})
	if err != nil {
		h.Logger.Error("ledger append failed", "file_id", meta.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record verification", "LEDGER_APPEND_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{Record: rec, StoragePath: meta.StoragePath})
}

// =============================================================================
// VERIFICATION
// =============================================================================

// VerifyBatch returns the ledger record for a batch ID.
// This is the public traceability endpoint linked from QR codes. The ID is
// passed to the store as-is: the ledger accepts externally assigned batch
// IDs, so no format is assumed here.
func (h *Handler) VerifyBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	rec, err := h.Store.GetByBatchID(r.Context(), batchID)
	if err != nil {
		h.respondLookupError(w, err, "batch ID not found: "+batchID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// VerifyFile returns the ledger record for a file content hash.
func (h *Handler) VerifyFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	rec, err := h.Store.GetByFileID(r.Context(), fileID)
	if err != nil {
		h.respondLookupError(w, err, "file ID not found: "+fileID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CheckIntegrity runs a full-chain audit and returns the report.
// An invalid ledger is still a 200: the report IS the answer.
func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("ledger integrity check requested")

	report, err := h.Store.VerifyIntegrity(r.Context())
	if err != nil {
		h.Logger.Error("integrity check failed to run", "error", err)
		writeError(w, http.StatusInternalServerError, "integrity check failed to run", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LastIntegrity returns the most recent background audit report.
func (h *Handler) LastIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "background integrity audits are disabled", "")
		return
	}
	report, at, ok := h.Scheduler.LastReport()
	if !ok {
		writeError(w, http.StatusNotFound, "no background audit has completed yet", "")
		return
	}
	writeJSON(w, http.StatusOK, IntegrityStatusResponse{
		Report:    report,
		CheckedAt: at.UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// LEDGER READS
// =============================================================================

// ListRecords returns recent records, optionally filtered.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter := ledger.QueryFilter{
		RiskLevel: r.URL.Query().Get("risk_level"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw, "")
			return
		}
		filter.Limit = n
	}
	if from, ok := parseTimeParam(w, r, "from"); ok {
		filter.From = from
	} else {
		return
	}
	if to, ok := parseTimeParam(w, r, "to"); ok {
		filter.To = to
	} else {
		return
	}

	records, err := h.Store.Query(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		h.Logger.Error("ledger query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger read failed", "INTERNAL_ERROR")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, RecordsResponse{Records: records, Count: len(records)})
}

// GetStats returns ledger-wide aggregates.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		h.Logger.Error("ledger stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger read failed", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		TotalRecords:      stats.TotalRecords,
		AnomalyCount:      stats.AnomalyCount,
		RiskLevels:        stats.RiskLevels,
		AverageFraudScore: stats.AverageFraudScore.InexactFloat64(),
	})
}

// =============================================================================
// SHIPMENTS
// =============================================================================

// GetConsistencyGraph returns the shipment consistency graph built from
// stored extracted entities.
func (h *Handler) GetConsistencyGraph(w http.ResponseWriter, r *http.Request) {
	shipmentID := chi.URLParam(r, "shipmentID")

	g, err := h.Graph.Build(r.Context(), shipmentID)
	if err != nil {
		if errors.Is(err, graph.ErrShipmentNotFound) {
			h.Logger.Warn("shipment consistency graph lookup failed", "shipment_id", shipmentID)
			writeError(w, http.StatusNotFound, "shipment not found: "+shipmentID, "")
			return
		}
		h.Logger.Error("consistency graph build failed", "shipment_id", shipmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "graph build failed", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports service liveness for monitors and load balancers.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		AppName:     h.Settings.AppName,
		Version:     h.Settings.Version,
		Environment: h.Settings.Environment,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) respondLookupError(w http.ResponseWriter, err error, notFoundMsg string) {
	if ledger.IsNotFound(err) {
		writeError(w, http.StatusNotFound, notFoundMsg, "")
		return
	}
	h.Logger.Error("ledger lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "ledger read failed", "INTERNAL_ERROR")
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" timestamp: "+raw, "")
		return nil, false
	}
	return &t, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, ErrorCode: code})
}
