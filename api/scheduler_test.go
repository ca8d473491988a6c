package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritrail/ledger-engine/api"
	"github.com/veritrail/ledger-engine/ledger"
)

func TestIntegrityScheduler_AuditsOnStart(t *testing.T) {
	// GIVEN: A ledger with records and a running scheduler
	// WHEN: The scheduler starts
	// THEN: A report is available without waiting a full interval

	store := ledger.NewMemoryStore()
	_, err := store.Append(context.Background(), ledger.AppendInput{
		BatchID: "BATCH-20260115-A3F5E8",
		FileID:  "file-1",
	})
	require.NoError(t, err)

	scheduler := api.NewIntegrityScheduler(store, time.Hour, testLogger())
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool {
		_, _, ok := scheduler.LastReport()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	report, at, ok := scheduler.LastReport()
	require.True(t, ok)
	assert.True(t, report.IsValid)
	assert.Equal(t, 1, report.TotalRecords)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestIntegrityScheduler_RecordsViolations(t *testing.T) {
	// GIVEN: A tampered ledger
	// WHEN: An audit runs
	// THEN: The kept report flags the violation

	store := ledger.NewMemoryStore()
	for i := 0; i < 2; i++ {
		_, err := store.Append(context.Background(), ledger.AppendInput{
			BatchID: "BATCH-20260115-A3F5E8",
			FileID:  "file-1",
		})
		require.NoError(t, err)
	}
	store.Tamper(0, func(r *ledger.Record) { r.BatchID = "BATCH-20260115-FFFFFF" })

	scheduler := api.NewIntegrityScheduler(store, 10*time.Millisecond, testLogger())
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool {
		report, _, ok := scheduler.LastReport()
		return ok && !report.IsValid
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegrityScheduler_ZeroIntervalDisablesAudits(t *testing.T) {
	// GIVEN: A scheduler with a zero interval
	// WHEN: Starting and stopping
	// THEN: No audit runs and Stop is a safe no-op

	scheduler := api.NewIntegrityScheduler(ledger.NewMemoryStore(), 0, testLogger())
	scheduler.Start()
	scheduler.Stop()

	_, _, ok := scheduler.LastReport()
	assert.False(t, ok)
}
