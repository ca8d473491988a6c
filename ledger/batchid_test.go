package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/veritrail/ledger-engine/ledger"
)

func TestNewBatchID_Format(t *testing.T) {
	// GIVEN: The generator
	// WHEN: Creating IDs
	// THEN: Every ID is well-formed and carries today's UTC date

	today := time.Now().UTC().Format("20060102")
	for i := 0; i < 100; i++ {
		id := ledger.NewBatchID()
		assert.True(t, ledger.ValidBatchID(id), "malformed id %q", id)
		assert.Equal(t, "BATCH-"+today, id[:14])
	}
}

func TestValidBatchID(t *testing.T) {
	valid := []string{
		"BATCH-20260115-A3F5E8",
		"BATCH-19991231-000000",
		"BATCH-20260101-FFFFFF",
	}
	for _, id := range valid {
		assert.True(t, ledger.ValidBatchID(id), "%q should be valid", id)
	}

	invalid := []string{
		"",
		"BATCH-20260115-a3f5e8",  // lowercase suffix
		"BATCH-2026015-A3F5E8",   // short date
		"BATCH-20260115-A3F5",    // short suffix
		"BATCH-20260115-A3F5E8X", // long suffix
		"LOT-20260115-A3F5E8",    // wrong prefix
		"BATCH_20260115_A3F5E8",  // wrong separators
		" BATCH-20260115-A3F5E8", // leading space
	}
	for _, id := range invalid {
		assert.False(t, ledger.ValidBatchID(id), "%q should be invalid", id)
	}
}
