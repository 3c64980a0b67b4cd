// Package metrics exposes Prometheus counters for the expiry scanner and an
// HTTP handler for scraping them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScannerMetrics holds the expiry scanner's counters.
type ScannerMetrics struct {
	// ScansTotal counts every tick, including ones gated off by the window.
	ScansTotal prometheus.Counter
	// ScansSkipped counts ticks that fell outside the processing window.
	ScansSkipped prometheus.Counter
	// ScanFailures counts ticks that ended in an error.
	ScanFailures prometheus.Counter
	// ExpirationsRecorded counts ledger rows written.
	ExpirationsRecorded prometheus.Counter
}

// NewScannerMetrics registers the scanner counters on the given registerer.
// Pass a fresh prometheus.NewRegistry() in tests to avoid collisions.
func NewScannerMetrics(reg prometheus.Registerer) *ScannerMetrics {
	m := &ScannerMetrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carins",
			Subsystem: "expiry_scanner",
			Name:      "scans_total",
			Help:      "Number of scan ticks attempted.",
		}),
		ScansSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carins",
			Subsystem: "expiry_scanner",
			Name:      "scans_skipped_total",
			Help:      "Number of scan ticks skipped because the current time was outside the processing window.",
		}),
		ScanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carins",
			Subsystem: "expiry_scanner",
			Name:      "scan_failures_total",
			Help:      "Number of scan ticks that failed.",
		}),
		ExpirationsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carins",
			Subsystem: "expiry_scanner",
			Name:      "expirations_recorded_total",
			Help:      "Number of expired policies recorded in the ledger.",
		}),
	}
	reg.MustRegister(m.ScansTotal, m.ScansSkipped, m.ScanFailures, m.ExpirationsRecorded)
	return m
}

// NewRegistry returns a registry preloaded with the standard process and Go
// runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
