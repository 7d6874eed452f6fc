package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	saveResultOK      = "ok"
	saveResultInvalid = "invalid"
	saveResultError   = "error"
)

// Metrics counts store outcomes. A nil *Metrics records nothing.
type Metrics struct {
	saves           *prometheus.CounterVec
	decryptFailures prometheus.Counter
	rowsSkipped     prometheus.Counter
	queryDuration   prometheus.Histogram
}

// NewMetrics creates store metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vessellog",
			Name:      "saves_total",
			Help:      "Save attempts by result.",
		}, []string{"result"}),
		decryptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vessellog",
			Name:      "decrypt_failures_total",
			Help:      "Message fields that failed authentication on read.",
		}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vessellog",
			Name:      "rows_skipped_total",
			Help:      "Stored rows skipped because they could not be decoded.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vessellog",
			Name:      "query_duration_seconds",
			Help:      "Time spent in Query.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.saves, m.decryptFailures, m.rowsSkipped, m.queryDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeSave(result string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result).Inc()
}

func (m *Metrics) observeDecryptFailure() {
	if m == nil {
		return
	}
	m.decryptFailures.Inc()
}

func (m *Metrics) observeSkippedRow() {
	if m == nil {
		return
	}
	m.rowsSkipped.Inc()
}

func (m *Metrics) observeQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(d.Seconds())
}
