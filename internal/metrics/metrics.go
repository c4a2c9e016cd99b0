package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for dispatch and indexing.
type Metrics struct {
	eventsDecoded   *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	unroutable      prometheus.Counter
	handlerFailures *prometheus.CounterVec
	batches         *prometheus.CounterVec
	blocksIndexed   *prometheus.CounterVec
}

// New builds the counters and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		eventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_events_decoded_total",
			Help: "Total number of logs decoded and handed to a handler",
		}, []string{"event"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_decode_failures_total",
			Help: "Total number of logs skipped because they failed to decode",
		}, []string{"event"}),
		unroutable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_relay_unroutable_batches_total",
			Help: "Total number of batches dropped because no event was registered for the topic",
		}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_handler_failures_total",
			Help: "Total number of handler invocations that returned an error",
		}, []string{"event"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_batches_dispatched_total",
			Help: "Total number of batches handed to a handler",
		}, []string{"event"}),
		blocksIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_relay_blocks_indexed_total",
			Help: "Total number of blocks scanned by the fetch loop",
		}, []string{"network"}),
	}

	collectors := []prometheus.Collector{
		m.eventsDecoded,
		m.decodeFailures,
		m.unroutable,
		m.handlerFailures,
		m.batches,
		m.blocksIndexed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EventsDecoded adds n decoded events for an event name.
func (m *Metrics) EventsDecoded(event string, n int) {
	if m != nil {
		m.eventsDecoded.WithLabelValues(event).Add(float64(n))
	}
}

// DecodeFailure increments the decode failure counter.
func (m *Metrics) DecodeFailure(event string) {
	if m != nil {
		m.decodeFailures.WithLabelValues(event).Inc()
	}
}

// Unroutable increments the unroutable batch counter.
func (m *Metrics) Unroutable() {
	if m != nil {
		m.unroutable.Inc()
	}
}

// HandlerFailure increments the handler failure counter.
func (m *Metrics) HandlerFailure(event string) {
	if m != nil {
		m.handlerFailures.WithLabelValues(event).Inc()
	}
}

// BatchDispatched increments the dispatched batch counter.
func (m *Metrics) BatchDispatched(event string) {
	if m != nil {
		m.batches.WithLabelValues(event).Inc()
	}
}

// BlocksIndexed adds n scanned blocks for a network.
func (m *Metrics) BlocksIndexed(network string, n uint64) {
	if m != nil {
		m.blocksIndexed.WithLabelValues(network).Add(float64(n))
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
