// Package telemetry reports conversation sync outcomes as structured logs
// and prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/models"
)

const namespace = "pitchline"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder implements conversation.Observer. Metrics live on a private
// registry so several recorders can coexist in one process.
type Recorder struct {
	logger   zerolog.Logger
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	sendTotal     *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	sendDuration  prometheus.Histogram
	lastFetchSize prometheus.Gauge
}

// NewRecorder creates a recorder logging through the "conversation" component.
func NewRecorder() *Recorder {
	return NewRecorderWithLogger(logging.Component("conversation"))
}

// NewRecorderWithLogger creates a recorder logging to logger.
func NewRecorderWithLogger(logger zerolog.Logger) *Recorder {
	r := &Recorder{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Conversation fetches by result.",
		}, []string{"result"}),
		sendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_total",
			Help:      "Message persist requests by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of successful conversation fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Latency of successful message persists.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastFetchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversation_messages",
			Help:      "Confirmed messages in the most recent fetch.",
		}),
	}
	r.registry.MustRegister(r.fetchTotal, r.sendTotal, r.fetchDuration, r.sendDuration, r.lastFetchSize)
	return r
}

// Registry exposes the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) FetchSucceeded(pair identity.Pair, count int, took time.Duration) {
	r.fetchTotal.WithLabelValues(ResultOK).Inc()
	r.fetchDuration.Observe(took.Seconds())
	r.lastFetchSize.Set(float64(count))
	r.logger.Debug().
		Str("pair", pair.String()).
		Int("count", count).
		Dur("took", took).
		Msg("conversation fetched")
}

func (r *Recorder) FetchFailed(pair identity.Pair, err error) {
	r.fetchTotal.WithLabelValues(ResultError).Inc()
	r.logger.Warn().
		Err(err).
		Str("pair", pair.String()).
		Msg("conversation fetch failed")
}

func (r *Recorder) MessageSent(pair identity.Pair, msg models.Message, took time.Duration) {
	r.sendTotal.WithLabelValues(ResultOK).Inc()
	r.sendDuration.Observe(took.Seconds())
	r.logger.Debug().
		Str("pair", pair.String()).
		Str("local_id", msg.ID).
		Dur("took", took).
		Msg("message persisted")
}

func (r *Recorder) SendFailed(pair identity.Pair, msg models.Message, err error) {
	r.sendTotal.WithLabelValues(ResultError).Inc()
	r.logger.Error().
		Err(err).
		Str("pair", pair.String()).
		Str("local_id", msg.ID).
		Msg("message not delivered")
}
