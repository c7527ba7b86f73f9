// Package metrics exposes Prometheus counters for a download run.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "mfdl"

	FileStatusDownloaded = "downloaded"
	FileStatusIncomplete = "incomplete"
	FileStatusFailed     = "failed"
	FileStatusSkipped    = "skipped"
	FileStatusTouched    = "touched"
	FileStatusFiltered   = "filtered"
)

type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	filesTotal      *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	filesDiscovered prometheus.Gauge
	inProgress      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Outbound requests by kind and response status (0 for transport failures).",
		}, []string{"kind", "status"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_attempts_total",
			Help:      "Failed attempts by operation and whether they consumed a retry slot.",
		}, []string{"op", "counted"}),
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Processed files by outcome.",
		}, []string{"status"}),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to local files.",
		}),
		filesDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_discovered",
			Help:      "Files found by the last scan.",
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_in_progress",
			Help:      "Downloads currently holding a job slot.",
		}),
	}

	reg.MustRegister(m.requestsTotal, m.retriesTotal, m.filesTotal, m.bytesTotal, m.filesDiscovered, m.inProgress)

	return m
}

func (m *Metrics) ObserveRequest(kind string, status int) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveFailedAttempt(op string, counted bool) {
	if m == nil {
		return
	}

	m.retriesTotal.WithLabelValues(op, strconv.FormatBool(counted)).Inc()
}

func (m *Metrics) FileDone(status string) {
	if m == nil {
		return
	}

	m.filesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}

	m.bytesTotal.Add(float64(n))
}

func (m *Metrics) SetDiscovered(n int) {
	if m == nil {
		return
	}

	m.filesDiscovered.Set(float64(n))
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}

	m.inProgress.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}

	m.inProgress.Dec()
}
