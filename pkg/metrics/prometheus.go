package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scans        prometheus.Counter
	scanDuration prometheus.Histogram
	symbols      prometheus.Gauge
	signalsLast  prometheus.Gauge
	rejections   *prometheus.CounterVec
	signals      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder { return NewWithRegistry(prometheus.DefaultRegisterer) }

// NewWithRegistry creates a recorder whose collectors register on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scans: f.NewCounter(prometheus.CounterOpts{
			Name: "coinpull_scans_total",
			Help: "Completed market scans",
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinpull_scan_duration_seconds",
			Help:    "Wall time of a full market scan",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		symbols: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinpull_scan_symbols",
			Help: "Symbols analysed in the last scan",
		}),
		signalsLast: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinpull_scan_signals",
			Help: "Signals produced by the last scan",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_rejections_total",
			Help: "Symbols rejected by the analyzer, by reason",
		}, []string{"reason"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_signals_total",
			Help: "Signals produced, by side and trend class",
		}, []string{"side", "trend"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinpull_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordScan records a finished scan.
func (r *Recorder) RecordScan(d time.Duration, scanned, signals int) {
	r.scans.Inc()
	r.scanDuration.Observe(d.Seconds())
	r.symbols.Set(float64(scanned))
	r.signalsLast.Set(float64(signals))
}

func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordSignal(side, trend string) {
	r.signals.WithLabelValues(side, trend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
