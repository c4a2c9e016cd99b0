package registry

import (
	"eventRelay/internal/model"
)

// DecodedEvent is a decoded payload with the provenance of its log.
type DecodedEvent struct {
	Data any
	Tx   model.TxInformation
}

// Event is the typed form of DecodedEvent handed to a TypedHandler.
type Event[T any] struct {
	Data T
	Tx   model.TxInformation
}

// ExtractTxInformation copies the positional fields of a log. Absent fields
// stay absent.
func ExtractTxInformation(network string, log model.RawLog) model.TxInformation {
	return model.TxInformation{
		Network:             network,
		Address:             log.Address,
		BlockHash:           clone(log.BlockHash),
		BlockNumber:         clone(log.BlockNumber),
		TransactionHash:     clone(log.TxHash),
		TransactionIndex:    clone(log.TxIndex),
		LogIndex:            clone(log.LogIndex),
		TransactionLogIndex: clone(log.TxLogIndex),
		LogType:             clone(log.LogType),
		Removed:             clone(log.Removed),
	}
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
