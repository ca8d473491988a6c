/*
Package document is the upload boundary for the ledger engine.

PURPOSE:
  Validates incoming files, stores them content-addressed, and defines the
  interfaces to the external parsing/scoring pipeline. OCR, feature
  extraction, the anomaly model, and the rule engine live OUTSIDE this
  module; they plug in behind Extractor and Scorer and only their outputs
  (ExtractedEntities, ValidationResult) flow into the ledger.

VALIDATION RULES:
  - Size within the configured limit, never empty
  - Extension on the allow list (.pdf, .png, .jpg, .jpeg, .csv by default)
  - Declared MIME type consistent with the extension

ERROR HANDLING:
  Failures carry a stable machine-readable code (FILE_TOO_LARGE,
  EMPTY_FILE, INVALID_FILE_TYPE, MIME_MISMATCH, UNSUPPORTED_FILE_TYPE) so
  the API layer can map them without string matching.

SEE ALSO:
  - storage.go: Content-addressed file storage
  - api/handlers.go: The upload endpoint
*/
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/veritrail/ledger-engine/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

// Type classifies a supported document.
type Type string

const (
	TypePDF   Type = "pdf"
	TypeImage Type = "image"
	TypeCSV   Type = "csv"
)

// FileMetadata describes a validated, stored upload.
type FileMetadata struct {
	FileID           string    `json:"file_id"` // SHA-256 of the content
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	DocumentType     Type      `json:"document_type"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`
	StoragePath      string    `json:"storage_path"`
}

// =============================================================================
// EXTERNAL PIPELINE INTERFACES
// =============================================================================

// Extractor pulls structured entity fields out of a stored document.
// Implementations (OCR, PDF text layer, CSV parsing) are external.
type Extractor interface {
	Extract(ctx context.Context, path string, docType Type) (ledger.ExtractedEntities, error)
}

// Scorer produces the fraud assessment for a stored document.
// Implementations (feature extraction, anomaly model, rule engine) are external.
type Scorer interface {
	Score(ctx context.Context, path string, meta FileMetadata, entities ledger.ExtractedEntities) (ledger.ValidationResult, error)
}

// NoopExtractor extracts nothing. Stand-in wiring until a real parsing
// pipeline is attached.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, string, Type) (ledger.ExtractedEntities, error) {
	return ledger.ExtractedEntities{Dates: []string{}}, nil
}

// FixedScorer returns the same result for every document. Stand-in wiring
// until a real scoring pipeline is attached.
type FixedScorer struct {
	Result ledger.ValidationResult
}

func (s FixedScorer) Score(context.Context, string, FileMetadata, ledger.ExtractedEntities) (ledger.ValidationResult, error) {
	return s.Result, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// Error codes returned to API clients.
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeEmptyFile           = "EMPTY_FILE"
	CodeInvalidFileType     = "INVALID_FILE_TYPE"
	CodeMimeMismatch        = "MIME_MISMATCH"
)

// ValidationError is a rejected upload, carrying a stable error code.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// =============================================================================
// SERVICE
// =============================================================================

// Limits bounds what the service accepts.
type Limits struct {
	MaxUploadSize     int64
	AllowedExtensions map[string]bool
}

// DefaultLimits mirror the original deployment: 10 MB, common document types.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadSize: 10 * 1024 * 1024,
		AllowedExtensions: map[string]bool{
			".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".csv": true,
		},
	}
}

// Service validates and stores uploads.
type Service struct {
	storage *Storage
	limits  Limits
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimits overrides the default upload limits.
func WithLimits(l Limits) ServiceOption {
	return func(s *Service) { s.limits = l }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the timestamp source. For tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates an upload service backed by storage.
func NewService(storage *Storage, opts ...ServiceOption) *Service {
	s := &Service{
		storage: storage,
		limits:  DefaultLimits(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClassifyType determines the document type from MIME type and extension.
func ClassifyType(mimeType, extension string) (Type, error) {
	mimeLower := strings.ToLower(mimeType)
	extLower := strings.ToLower(extension)

	switch {
	case mimeLower == "application/pdf" || extLower == ".pdf":
		return TypePDF, nil
	case strings.HasPrefix(mimeLower, "image/") || extLower == ".png" || extLower == ".jpg" || extLower == ".jpeg":
		return TypeImage, nil
	case mimeLower == "text/csv" || extLower == ".csv":
		return TypeCSV, nil
	}
	return "", &ValidationError{
		Code:    CodeUnsupportedFileType,
		Message: fmt.Sprintf("unsupported file type: %s", mimeType),
	}
}

// ValidateFile checks an upload before any content is stored.
func (s *Service) ValidateFile(filename string, fileSize int64, mimeType string) error {
	if fileSize > s.limits.MaxUploadSize {
		return &ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("file too large, maximum size: %.1f MB", float64(s.limits.MaxUploadSize)/(1024*1024)),
		}
	}
	if fileSize == 0 {
		return &ValidationError{Code: CodeEmptyFile, Message: "file is empty"}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.limits.AllowedExtensions[ext] {
		return &ValidationError{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("invalid file type %q, allowed: %s", ext, strings.Join(s.allowedList(), ", ")),
		}
	}

	// Declared MIME type must at least share the major type the extension
	// implies. octet-stream means the client didn't know; let it through.
	if expected := mime.TypeByExtension(ext); expected != "" && mimeType != "" && mimeType != "application/octet-stream" {
		if majorType(mimeType) != majorType(expected) {
			return &ValidationError{
				Code:    CodeMimeMismatch,
				Message: "file extension does not match content type",
			}
		}
	}
	return nil
}

func (s *Service) allowedList() []string {
	out := make([]string, 0, len(s.limits.AllowedExtensions))
	for ext := range s.limits.AllowedExtensions {
		out = append(out, ext)
	}
	return out
}

func majorType(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i >= 0 {
		return strings.ToLower(mimeType[:i])
	}
	return strings.ToLower(mimeType)
}

// ProcessUpload validates and stores one upload:
//  1. Read the content (bounded by the size limit)
//  2. Validate name, size, and MIME consistency
//  3. Store content-addressed (duplicates deduplicate to the same file ID)
//  4. Return structured metadata for the scoring pipeline
func (s *Service) ProcessUpload(ctx context.Context, filename, mimeType string, r io.Reader) (*FileMetadata, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	content, err := io.ReadAll(io.LimitReader(r, s.limits.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if err := s.ValidateFile(filename, int64(len(content)), mimeType); err != nil {
		s.logger.Warn("upload rejected", "filename", filename, "error", err)
		return nil, err
	}

	docType, err := ClassifyType(mimeType, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}

	fileID, storagePath, err := s.storage.Save(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	meta := &FileMetadata{
		FileID:           fileID,
		OriginalFilename: filename,
		FileSize:         int64(len(content)),
		MimeType:         mimeType,
		DocumentType:     docType,
		UploadTimestamp:  s.now().UTC(),
		StoragePath:      storagePath,
	}
	s.logger.Info("upload stored", "file_id", fileID, "document_type", docType, "size", meta.FileSize)
	return meta, nil
}
