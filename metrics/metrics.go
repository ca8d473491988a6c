// Package metrics provides Prometheus observability for the ledger engine.
// Tracks append throughput and latency, lookup outcomes, integrity check
// results, cache effectiveness, and tamper alerts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all ledger engine instruments. A nil *Metrics is valid and
// turns every observation into a no-op, so stores can run uninstrumented.
type Metrics struct {
	AppendsTotal           *prometheus.CounterVec
	AppendDuration         prometheus.Histogram
	LookupsTotal           *prometheus.CounterVec
	IntegrityCheckDuration prometheus.Histogram
	LedgerValid            prometheus.Gauge
	TamperAlertsTotal      prometheus.Counter
	CacheTotal             *prometheus.CounterVec
}

// New registers all instruments with reg. Pass prometheus.DefaultRegisterer
// in production; tests use a fresh registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AppendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veritrail_ledger_appends_total",
			Help: "Total ledger append attempts by outcome",
		}, []string{"outcome"}),
		AppendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritrail_ledger_append_duration_seconds",
			Help:    "Duration of ledger appends (critical section included)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veritrail_ledger_lookups_total",
			Help: "Total point lookups by key kind and outcome",
		}, []string{"kind", "outcome"}),
		IntegrityCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritrail_ledger_integrity_check_duration_seconds",
			Help:    "Duration of full-chain integrity checks",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		LedgerValid: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veritrail_ledger_valid",
			Help: "1 if the last integrity check passed, 0 if it found a violation",
		}),
		TamperAlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "veritrail_ledger_tamper_alerts_total",
			Help: "Out-of-band ledger file modifications detected by the watcher",
		}),
		CacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veritrail_ledger_cache_total",
			Help: "Lookup cache accesses by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveAppend records one append attempt.
func (m *Metrics) ObserveAppend(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.AppendsTotal.WithLabelValues(outcome).Inc()
	m.AppendDuration.Observe(d.Seconds())
}

// Lookup outcomes. A missing record is a client condition; a storage
// failure is an operational one, and the two must not share a bucket.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// ObserveLookup records one point lookup with one of the Lookup* outcomes.
func (m *Metrics) ObserveLookup(kind, outcome string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveIntegrity records one full-chain check.
func (m *Metrics) ObserveIntegrity(d time.Duration, valid bool) {
	if m == nil {
		return
	}
	m.IntegrityCheckDuration.Observe(d.Seconds())
	if valid {
		m.LedgerValid.Set(1)
	} else {
		m.LedgerValid.Set(0)
	}
}

// TamperAlert records one out-of-band file modification.
func (m *Metrics) TamperAlert() {
	if m == nil {
		return
	}
	m.TamperAlertsTotal.Inc()
}

// CacheHit records a cache hit (positive or negative entry).
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheTotal.WithLabelValues("hit").Inc()
}

// CacheMiss records a cache miss that fell through to the store.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheTotal.WithLabelValues("miss").Inc()
}
