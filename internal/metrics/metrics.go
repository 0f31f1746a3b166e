// Package metrics exposes Prometheus counters for the agent and the collector.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "gnss_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultDropped = "dropped"

	DropOverflow  = "overflow"
	DropQueueFull = "queue_full"
	DropClosed    = "closed"
)

var (
	registerOnce sync.Once

	recordsAppended prometheus.Counter
	recordsDropped  *prometheus.CounterVec
	bufferRecords   prometheus.Gauge
	uploadBatches   *prometheus.CounterVec
	uploadRecords   *prometheus.CounterVec
	uploadLatency   *prometheus.HistogramVec
	uploadAttempts  prometheus.Histogram

	ingestRequests *prometheus.CounterVec
	ingestRecords  *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
)

// Init registers every collector with the default registry. It is safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		recordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "agent_records_appended_total",
			Help: "Measurements accepted into the agent buffer",
		})
		recordsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "agent_records_dropped_total",
			Help: "Measurements lost before upload by reason",
		}, []string{"reason"})
		bufferRecords = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "agent_buffer_records",
			Help: "Measurements waiting for the next flush",
		})
		uploadBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "agent_upload_batches_total",
			Help: "Upload requests by endpoint and result",
		}, []string{"path", "result"})
		uploadRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "agent_upload_records_total",
			Help: "Records carried by upload requests by result",
		}, []string{"result"})
		uploadLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "agent_upload_latency_seconds",
			Help:    "Upload latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"})
		uploadAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "agent_upload_attempts",
			Help:    "HTTP attempts per upload",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		})

		ingestRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "collector_ingest_requests_total",
			Help: "Ingest requests by endpoint and status code",
		}, []string{"endpoint", "code"})
		ingestRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "collector_ingest_records_total",
			Help: "Records stored by endpoint",
		}, []string{"endpoint"})
		ingestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "collector_ingest_latency_seconds",
			Help:    "Ingest handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"})

		prometheus.MustRegister(
			recordsAppended, recordsDropped, bufferRecords,
			uploadBatches, uploadRecords, uploadLatency, uploadAttempts,
			ingestRequests, ingestRecords, ingestLatency,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func IncAppended(n int) {
	if recordsAppended != nil && n > 0 {
		recordsAppended.Add(float64(n))
	}
}

func AddDropped(reason string, n int) {
	if reason == "" {
		reason = "unknown"
	}
	if recordsDropped != nil && n > 0 {
		recordsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func SetBufferLen(n int) {
	if bufferRecords != nil {
		bufferRecords.Set(float64(n))
	}
}

// ObserveUpload records one finished upload.
func ObserveUpload(path, result string, records, attempts int, d time.Duration) {
	if uploadBatches == nil {
		return
	}
	uploadBatches.WithLabelValues(path, result).Inc()
	uploadRecords.WithLabelValues(result).Add(float64(records))
	uploadLatency.WithLabelValues(path).Observe(d.Seconds())
	if attempts > 0 {
		uploadAttempts.Observe(float64(attempts))
	}
}

// ObserveIngest records one collector ingest request.
func ObserveIngest(endpoint string, code, records int, d time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	if records > 0 {
		ingestRecords.WithLabelValues(endpoint).Add(float64(records))
	}
	ingestLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}
