// Package registry decodes raw logs with the decoder of the deployment that
// emitted them and dispatches the decoded batch to the handler registered for
// the topic.
//
// A Registry is built in two phases. While building, Register adds routes.
// The first Trigger (or an explicit Complete) makes it active; from then on
// the route table is read-only and may be used from many goroutines without
// locking. Registration must finish before dispatch starts.
package registry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"eventRelay/internal/metrics"
	"eventRelay/internal/model"
)

// DecodeErrorSink receives a record for every log that failed to decode.
type DecodeErrorSink interface {
	PutDecodeError(rec model.DecodeError) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the dispatch counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithDecodeErrorSink sets where decode failures are recorded.
func WithDecodeErrorSink(sink DecodeErrorSink) Option {
	return func(r *Registry) {
		r.decodeErrors = sink
	}
}

// Registry owns the routes and dispatches decoded batches.
type Registry struct {
	events []*EventInformation
	index  map[common.Hash]int
	active atomic.Bool

	logger       *zap.Logger
	metrics      *metrics.Metrics
	decodeErrors DecodeErrorSink
}

// New builds an empty registry in the building phase.
func New(opts ...Option) *Registry {
	r := &Registry{
		index:  make(map[common.Hash]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a route. A second route for the same topic is rejected
// with ErrDuplicateTopic and the first one stays in place.
func (r *Registry) Register(event *EventInformation) error {
	if r.active.Load() {
		return ErrRegistryActive
	}
	if event == nil || event.Handler == nil {
		return ErrNilHandler
	}
	if err := event.Contract.Validate(); err != nil {
		return err
	}
	if _, ok := r.index[event.TopicID]; ok {
		return fmt.Errorf("%s (%s): %w", event.TopicID.Hex(), event.label(), ErrDuplicateTopic)
	}

	r.index[event.TopicID] = len(r.events)
	r.events = append(r.events, event)
	return nil
}

// FindEvent returns the route registered for topicID.
func (r *Registry) FindEvent(topicID common.Hash) (*EventInformation, bool) {
	i, ok := r.index[topicID]
	if !ok {
		return nil, false
	}
	return r.events[i], true
}

// Events returns the routes in registration order.
func (r *Registry) Events() []*EventInformation {
	out := make([]*EventInformation, len(r.events))
	copy(out, r.events)
	return out
}

// Complete ends the building phase.
func (r *Registry) Complete() *Registry {
	r.active.Store(true)
	return r
}

// Active reports whether registration is closed.
func (r *Registry) Active() bool {
	return r.active.Load()
}

// Trigger decodes logs with their deployments' decoders and hands the batch to
// the handler registered for topicID, waiting for it to return.
//
// An unknown topic is logged and dropped. Logs that fail to decode are logged
// and skipped; the rest keep their relative order. A handler error is returned
// as a *HandlerError and is not retried.
func (r *Registry) Trigger(ctx context.Context, topicID common.Hash, logs []LogWithContract) error {
	r.active.Store(true)

	event, ok := r.FindEvent(topicID)
	if !ok {
		r.metrics.Unroutable()
		r.logger.Warn("no event registered for topic",
			zap.String("topic_id", topicID.Hex()),
			zap.Int("logs", len(logs)),
		)
		return nil
	}

	label := event.label()
	decoded := make([]DecodedEvent, 0, len(logs))
	for _, item := range logs {
		ev, err := r.decode(event, topicID, item)
		if err != nil {
			r.reportDecodeError(label, err)
			continue
		}
		decoded = append(decoded, ev)
	}

	if len(decoded) == 0 {
		r.logger.Debug("nothing to dispatch", zap.String("event", label), zap.Int("logs", len(logs)))
		return nil
	}

	r.metrics.EventsDecoded(label, len(decoded))
	if err := event.Handler.Handle(ctx, decoded); err != nil {
		r.metrics.HandlerFailure(label)
		return &HandlerError{TopicID: topicID, Event: label, Err: err}
	}
	r.metrics.BatchDispatched(label)
	return nil
}

func (r *Registry) decode(event *EventInformation, topicID common.Hash, item LogWithContract) (DecodedEvent, *DecodeError) {
	if item.Contract == nil {
		return DecodedEvent{}, &DecodeError{TopicID: topicID, Log: item.Log, Err: ErrNoContract}
	}

	data, err := item.Contract.DecodeLog(item.Log)
	if err != nil {
		decodeErr, ok := err.(*DecodeError)
		if !ok {
			decodeErr = &DecodeError{Network: item.Contract.Network, Log: item.Log, Err: err}
		}
		decodeErr.TopicID = topicID
		return DecodedEvent{}, decodeErr
	}
	if event.accepts != nil && !event.accepts(data) {
		return DecodedEvent{}, &DecodeError{
			TopicID: topicID,
			Network: item.Contract.Network,
			Log:     item.Log,
			Err:     fmt.Errorf("payload %T does not match event %s", data, event.label()),
		}
	}

	return DecodedEvent{
		Data: data,
		Tx:   ExtractTxInformation(item.Contract.Network, item.Log),
	}, nil
}

func (r *Registry) reportDecodeError(label string, err *DecodeError) {
	r.metrics.DecodeFailure(label)
	r.logger.Warn("decode failed, skipping log",
		zap.String("event", label),
		zap.String("topic_id", err.TopicID.Hex()),
		zap.String("network", err.Network),
		zap.String("address", err.Log.Address.Hex()),
		zap.String("data", hexutil.Encode(err.Log.Data)),
		zap.Error(err.Err),
	)
	if r.decodeErrors == nil {
		return
	}
	if sinkErr := r.decodeErrors.PutDecodeError(err.Record()); sinkErr != nil {
		r.logger.Warn("record decode error", zap.Error(sinkErr))
	}
}
