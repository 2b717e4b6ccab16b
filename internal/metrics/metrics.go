// Package metrics provides the optional Prometheus instrumentation a host
// process can inject into a feed controller: a concrete recorder instead
// of a free-form string/float/tags callback.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the instrumentation surface a FeedController and its
// strategies call into. A nil *Recorder is valid everywhere it's accepted;
// every method is a no-op on a nil receiver so callers never need a guard.
type Recorder struct {
	restRequests   *prometheus.CounterVec
	restErrors     *prometheus.CounterVec
	wsReconnects   *prometheus.CounterVec
	shapeErrors    *prometheus.CounterVec
	barsInserted   *prometheus.CounterVec
	streamState    *prometheus.GaugeVec
}

// NewRecorder builds a Recorder and registers its collectors against reg.
// Passing prometheus.NewRegistry() keeps tests isolated from the global
// registry; passing nil registers against prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		restRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barfeed_rest_requests_total",
			Help: "REST fetches issued by adapter, keyed by exchange and outcome.",
		}, []string{"exchange", "outcome"}),
		restErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barfeed_rest_errors_total",
			Help: "REST fetch errors, keyed by exchange and error kind.",
		}, []string{"exchange", "kind"}),
		wsReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barfeed_ws_reconnects_total",
			Help: "WebSocket reconnect attempts, keyed by exchange.",
		}, []string{"exchange"}),
		shapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barfeed_shape_errors_total",
			Help: "Parse/shape errors that the adapter swallowed, keyed by exchange and source.",
		}, []string{"exchange", "source"}),
		barsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barfeed_bars_inserted_total",
			Help: "Bars accepted by a store's Offer, keyed by exchange and pair.",
		}, []string{"exchange", "pair"}),
		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barfeed_stream_state",
			Help: "Current streaming strategy state (0=idle..5=terminal), keyed by exchange and pair.",
		}, []string{"exchange", "pair"}),
	}
	reg.MustRegister(r.restRequests, r.restErrors, r.wsReconnects, r.shapeErrors, r.barsInserted, r.streamState)
	return r
}

func (r *Recorder) RESTRequest(exchange, outcome string) {
	if r == nil {
		return
	}
	r.restRequests.WithLabelValues(exchange, outcome).Inc()
}

func (r *Recorder) RESTError(exchange, kind string) {
	if r == nil {
		return
	}
	r.restErrors.WithLabelValues(exchange, kind).Inc()
}

func (r *Recorder) WSReconnect(exchange string) {
	if r == nil {
		return
	}
	r.wsReconnects.WithLabelValues(exchange).Inc()
}

func (r *Recorder) ShapeError(exchange, source string) {
	if r == nil {
		return
	}
	r.shapeErrors.WithLabelValues(exchange, source).Inc()
}

func (r *Recorder) BarInserted(exchange, pair string) {
	if r == nil {
		return
	}
	r.barsInserted.WithLabelValues(exchange, pair).Inc()
}

func (r *Recorder) StreamState(exchange, pair string, state int) {
	if r == nil {
		return
	}
	r.streamState.WithLabelValues(exchange, pair).Set(float64(state))
}
