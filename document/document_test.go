package document_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritrail/ledger-engine/document"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T, opts ...document.ServiceOption) (*document.Service, *document.Storage) {
	t.Helper()
	storage, err := document.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)
	return document.NewService(storage, opts...), storage
}

func assertValidationCode(t *testing.T, err error, code string) {
	t.Helper()
	ve, ok := document.AsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Equal(t, code, ve.Code)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestService_ValidateFile_RejectsOversized(t *testing.T) {
	// GIVEN: A 1 KB size limit
	// WHEN: Validating a larger file
	// THEN: FILE_TOO_LARGE

	svc, _ := newTestService(t, document.WithLimits(document.Limits{
		MaxUploadSize:     1024,
		AllowedExtensions: map[string]bool{".pdf": true},
	}))

	err := svc.ValidateFile("big.pdf", 2048, "application/pdf")
	assertValidationCode(t, err, document.CodeFileTooLarge)
}

func TestService_ValidateFile_RejectsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.ValidateFile("empty.pdf", 0, "application/pdf")
	assertValidationCode(t, err, document.CodeEmptyFile)
}

func TestService_ValidateFile_RejectsUnknownExtension(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.ValidateFile("malware.exe", 100, "application/octet-stream")
	assertValidationCode(t, err, document.CodeInvalidFileType)
}

func TestService_ValidateFile_RejectsMimeMismatch(t *testing.T) {
	// GIVEN: A .pdf filename declared as an image
	// WHEN: Validating
	// THEN: MIME_MISMATCH

	svc, _ := newTestService(t)
	err := svc.ValidateFile("invoice.pdf", 100, "image/png")
	assertValidationCode(t, err, document.CodeMimeMismatch)
}

func TestService_ValidateFile_AcceptsOctetStream(t *testing.T) {
	// GIVEN: A client that didn't detect the content type
	// WHEN: Validating with application/octet-stream
	// THEN: Accepted; the extension decides

	svc, _ := newTestService(t)
	assert.NoError(t, svc.ValidateFile("invoice.pdf", 100, "application/octet-stream"))
}

func TestService_ValidateFile_AcceptsMatchingTypes(t *testing.T) {
	svc, _ := newTestService(t)
	assert.NoError(t, svc.ValidateFile("invoice.pdf", 100, "application/pdf"))
	assert.NoError(t, svc.ValidateFile("scan.png", 100, "image/png"))
	assert.NoError(t, svc.ValidateFile("photo.JPG", 100, "image/jpeg"))
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		mime, ext string
		want      document.Type
	}{
		{"application/pdf", ".pdf", document.TypePDF},
		{"application/octet-stream", ".pdf", document.TypePDF},
		{"image/png", ".png", document.TypeImage},
		{"image/jpeg", ".jpg", document.TypeImage},
		{"text/csv", ".csv", document.TypeCSV},
		{"application/octet-stream", ".csv", document.TypeCSV},
	}
	for _, tt := range tests {
		got, err := document.ClassifyType(tt.mime, tt.ext)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := document.ClassifyType("application/zip", ".zip")
	assertValidationCode(t, err, document.CodeUnsupportedFileType)
}

// =============================================================================
// UPLOAD PROCESSING TESTS
// =============================================================================

func TestService_ProcessUpload_StoresContentAddressed(t *testing.T) {
	// GIVEN: A valid PDF upload
	// WHEN: Processing it
	// THEN: The file ID is the content SHA-256 and the bytes are on disk

	svc, storage := newTestService(t)
	content := []byte("%PDF-1.4 minimal test document")

	meta, err := svc.ProcessUpload(context.Background(), "invoice.pdf", "application/pdf", strings.NewReader(string(content)))
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.FileID)
	assert.Equal(t, "invoice.pdf", meta.OriginalFilename)
	assert.Equal(t, int64(len(content)), meta.FileSize)
	assert.Equal(t, document.TypePDF, meta.DocumentType)

	path, err := storage.Path(meta.FileID)
	require.NoError(t, err)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	// Sharded layout: ab/cd/<hash>.
	assert.Equal(t, filepath.Join(meta.FileID[:2], meta.FileID[2:4], meta.FileID), meta.StoragePath)
}

func TestService_ProcessUpload_DeduplicatesIdenticalContent(t *testing.T) {
	// GIVEN: The same bytes uploaded twice under different names
	// WHEN: Processing both
	// THEN: Both resolve to the same file ID and storage path

	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.ProcessUpload(ctx, "a.pdf", "application/pdf", strings.NewReader("%PDF-1.4 same"))
	require.NoError(t, err)
	second, err := svc.ProcessUpload(ctx, "b.pdf", "application/pdf", strings.NewReader("%PDF-1.4 same"))
	require.NoError(t, err)

	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, first.StoragePath, second.StoragePath)
}

func TestService_ProcessUpload_RejectsOversizedStream(t *testing.T) {
	// GIVEN: A 16-byte limit
	// WHEN: Uploading a longer stream
	// THEN: FILE_TOO_LARGE and nothing is stored

	svc, _ := newTestService(t, document.WithLimits(document.Limits{
		MaxUploadSize:     16,
		AllowedExtensions: map[string]bool{".pdf": true},
	}))

	_, err := svc.ProcessUpload(context.Background(), "big.pdf", "application/pdf",
		strings.NewReader(strings.Repeat("x", 64)))
	assertValidationCode(t, err, document.CodeFileTooLarge)
}

func TestService_ProcessUpload_RejectsEmptyStream(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ProcessUpload(context.Background(), "empty.pdf", "application/pdf", strings.NewReader(""))
	assertValidationCode(t, err, document.CodeEmptyFile)
}

// =============================================================================
// STORAGE TESTS
// =============================================================================

func TestStorage_Path_UnknownFileID(t *testing.T) {
	storage, err := document.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = storage.Path(strings.Repeat("ab", 32))
	assert.Error(t, err)

	_, err = storage.Path("ab")
	assert.Error(t, err)
}
