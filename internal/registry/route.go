package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Handler consumes one decoded batch for a topic. The same handler may be
// called concurrently by independent Trigger calls.
type Handler interface {
	Handle(ctx context.Context, events []DecodedEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, events []DecodedEvent) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, events []DecodedEvent) error {
	return f(ctx, events)
}

// EventInformation routes one topic of one contract to its handler.
type EventInformation struct {
	TopicID  common.Hash
	Name     string
	Contract ContractInfo
	Handler  Handler

	// accepts rejects payloads of the wrong shape before they reach a typed
	// handler. Nil accepts everything.
	accepts func(any) bool
}

func (e *EventInformation) label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.TopicID.Hex()
}

// EventDefinition is the decoder of one event with a concrete payload type.
type EventDefinition[T any] struct {
	Name    string
	TopicID common.Hash
	Decode  func(topics []common.Hash, data []byte) (T, error)
}

// Decoder erases the payload type so the definition can be stored on a
// deployment.
func (d EventDefinition[T]) Decoder() Decoder {
	return func(topics []common.Hash, data []byte) (any, error) {
		v, err := d.Decode(topics, data)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// TypedHandler consumes a batch of events decoded by an EventDefinition[T].
type TypedHandler[T any] func(ctx context.Context, events []Event[T]) error

// NewEvent builds a route whose deployments all decode with def and whose
// handler receives []Event[T]. Decoder and handler are built together, so a
// payload can only have the wrong type when a log is triggered with a
// deployment that did not come from this route; such logs are treated as
// decode failures.
func NewEvent[T any](def EventDefinition[T], contract ContractInfo, handler TypedHandler[T]) (*EventInformation, error) {
	if def.Decode == nil {
		return nil, fmt.Errorf("event %s: %w", def.Name, ErrNoDecoder)
	}
	if handler == nil {
		return nil, fmt.Errorf("event %s: %w", def.Name, ErrNilHandler)
	}
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	decoder := def.Decoder()
	details := make([]NetworkContract, len(contract.Details))
	for i, detail := range contract.Details {
		detail.Decoder = decoder
		details[i] = detail
	}
	contract.Details = details

	return &EventInformation{
		TopicID:  def.TopicID,
		Name:     def.Name,
		Contract: contract,
		Handler: HandlerFunc(func(ctx context.Context, events []DecodedEvent) error {
			typed := make([]Event[T], 0, len(events))
			for _, ev := range events {
				data, ok := ev.Data.(T)
				if !ok {
					return fmt.Errorf("event %s: unexpected payload %T", def.Name, ev.Data)
				}
				typed = append(typed, Event[T]{Data: data, Tx: ev.Tx})
			}
			return handler(ctx, typed)
		}),
		accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}, nil
}
