/*
batchid.go - Ledger-assigned traceability identifiers

PURPOSE:
  Generates the human-readable batch IDs printed on QR labels and shared
  with customs parties.

FORMAT: BATCH-YYYYMMDD-XXXXXX
  - YYYYMMDD: UTC date of creation
  - XXXXXX:   6 uppercase hex characters from a CSPRNG

  Example: BATCH-20260207-A3F5E8

  IDs are unique-ish, not guaranteed unique; the store does not enforce
  uniqueness and lookups resolve duplicates to the earliest record.
*/
package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var batchIDPattern = regexp.MustCompile(`^BATCH-\d{8}-[A-F0-9]{6}$`)

// NewBatchID generates a new batch ID for the current UTC date.
func NewBatchID() string {
	return newBatchIDAt(time.Now())
}

func newBatchIDAt(t time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible to return.
		panic(fmt.Sprintf("ledger: entropy source unavailable: %v", err))
	}
	return fmt.Sprintf("BATCH-%s-%s",
		t.UTC().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(buf)))
}

// ValidBatchID reports whether s is a well-formed batch ID.
func ValidBatchID(s string) bool {
	return batchIDPattern.MatchString(s)
}
