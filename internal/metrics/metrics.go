// Package metrics records upstream and deliberation metrics on a caller-owned
// Prometheus registry. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream call outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeTimeout        = "timeout"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
	OutcomeEmptyContent   = "empty_content"
)

// Deliberation outcomes.
const (
	DeliberationOK          = "ok"
	DeliberationNoResponses = "no_responses"
	DeliberationError       = "error"
)

// Recorder holds the council's collectors.
type Recorder struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	deliberations    *prometheus.CounterVec
	stageResponses   *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_council_upstream_requests_total",
				Help: "Total number of chat-completion requests by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_council_upstream_request_duration_seconds",
				Help:    "Duration of chat-completion requests in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
			},
			[]string{"model"},
		),
		deliberations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_council_deliberations_total",
				Help: "Total number of deliberations by outcome",
			},
			[]string{"outcome"},
		),
		stageResponses: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_council_stage_responses",
				Help:    "Number of successful responses gathered per stage",
				Buckets: prometheus.LinearBuckets(0, 1, 9),
			},
			[]string{"stage"},
		),
	}

	for _, c := range []prometheus.Collector{r.upstreamRequests, r.upstreamDuration, r.deliberations, r.stageResponses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveUpstream records one chat-completion call.
func (r *Recorder) ObserveUpstream(model, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(model, outcome).Inc()
	r.upstreamDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveDeliberation records a finished deliberation.
func (r *Recorder) ObserveDeliberation(outcome string) {
	if r == nil {
		return
	}
	r.deliberations.WithLabelValues(outcome).Inc()
}

// ObserveStage records how many responses a stage produced.
func (r *Recorder) ObserveStage(stage string, responses int) {
	if r == nil {
		return
	}
	r.stageResponses.WithLabelValues(stage).Observe(float64(responses))
}
