package storage

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
	"eventRelay/internal/registry"
)

// NewHandler returns a typed handler that converts each decoded batch into
// event records and writes it to every sink in order. The first sink error
// stops the batch.
func NewHandler[T any](contract, event string, topicID common.Hash, sinks ...Storage) registry.TypedHandler[T] {
	topic := topicID.Hex()
	return func(ctx context.Context, events []registry.Event[T]) error {
		records := make([]model.EventRecord, len(events))
		for i, ev := range events {
			records[i] = model.EventRecord{
				Contract:      contract,
				EventName:     event,
				TopicID:       topic,
				TxInformation: ev.Tx,
				Decoded:       ev.Data,
			}
		}
		for _, sink := range sinks {
			if err := sink.PutEvents(ctx, records); err != nil {
				return fmt.Errorf("store %s events: %w", event, err)
			}
		}
		return nil
	}
}
