/*
scheduler.go - Background integrity audit scheduler

PURPOSE:
  Periodically runs the full-chain integrity check so tampering is noticed
  without waiting for someone to call the audit endpoint. The last report
  is kept for the /verify/integrity/last endpoint and the ledger_valid
  metric tracks the outcome.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Audits once immediately on start
  - Keeps only the most recent report; history belongs to the metrics store

USAGE:
  scheduler := NewIntegrityScheduler(store, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: LastIntegrity endpoint
  - ledger/file.go: VerifyIntegrity
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veritrail/ledger-engine/ledger"
)

// IntegrityScheduler runs periodic full-chain audits.
type IntegrityScheduler struct {
	Store    ledger.Store
	Interval time.Duration

	logger *slog.Logger

	mu     sync.Mutex
	last   *ledger.IntegrityReport
	lastAt time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewIntegrityScheduler creates a scheduler. A nil logger uses slog.Default().
func NewIntegrityScheduler(store ledger.Store, interval time.Duration, logger *slog.Logger) *IntegrityScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityScheduler{
		Store:    store,
		Interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler. No-op if the interval is zero.
func (s *IntegrityScheduler) Start() {
	if s.Interval <= 0 {
		s.logger.Info("background integrity audits disabled")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()
	s.logger.Info("integrity audit scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for any in-flight audit to finish.
func (s *IntegrityScheduler) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("integrity audit scheduler stopped")
}

// LastReport returns the most recent audit outcome, if any has completed.
func (s *IntegrityScheduler) LastReport() (*ledger.IntegrityReport, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, time.Time{}, false
	}
	return s.last, s.lastAt, true
}

func (s *IntegrityScheduler) run() {
	defer s.wg.Done()

	// Audit immediately on start so the status endpoint is useful right away.
	s.audit()

	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.audit()
		}
	}
}

func (s *IntegrityScheduler) audit() {
	report, err := s.Store.VerifyIntegrity(context.Background())
	if err != nil {
		s.logger.Error("background integrity audit failed to run", "error", err)
		return
	}

	s.mu.Lock()
	s.last = report
	s.lastAt = time.Now()
	s.mu.Unlock()

	if !report.IsValid {
		s.logger.Error("background integrity audit found a violation",
			"line", *report.FirstInvalidRecord, "error", report.ErrorMessage)
	}
}
