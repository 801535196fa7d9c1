package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	instructions   *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	lastUpdateSlot *prometheus.GaugeVec
	verifyLatency  prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		instructions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_instructions_total",
				Help: "Total instructions dispatched, by kind and outcome",
			},
			[]string{"instruction", "result"},
		),
		rejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_rejections_total",
				Help: "Total rejected instructions by stable error code",
			},
			[]string{"code"},
		),
		lastUpdateSlot: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sso_last_update_slot",
				Help: "Last committed attestation slot per asset pair",
			},
			[]string{"asset_pair"},
		),
		verifyLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sso_verify_duration_seconds",
				Help:    "Duration of the update verification pipeline",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordInstruction records one dispatched instruction and its outcome.
func (r *Recorder) RecordInstruction(kind, result string) {
	r.instructions.WithLabelValues(kind, result).Inc()
}

// RecordRejection records a rejection by error code.
func (r *Recorder) RecordRejection(code string) {
	r.rejections.WithLabelValues(code).Inc()
}

// RecordLastUpdateSlot records the last committed attestation slot.
func (r *Recorder) RecordLastUpdateSlot(assetPair string, slot uint64) {
	r.lastUpdateSlot.WithLabelValues(assetPair).Set(float64(slot))
}

// RecordVerifyLatency records verification pipeline latency in seconds.
func (r *Recorder) RecordVerifyLatency(seconds float64) {
	r.verifyLatency.Observe(seconds)
}
