package storage

import (
	"context"

	"eventRelay/internal/model"
)

// Storage defines a sink for decoded events.
type Storage interface {
	PutEvents(ctx context.Context, events []model.EventRecord) error
}
