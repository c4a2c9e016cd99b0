package registry

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"eventRelay/internal/model"
)

var (
	ErrDuplicateTopic = errors.New("topic already registered")
	ErrNoDeployments  = errors.New("contract has no deployments")
	ErrNilHandler     = errors.New("handler is nil")
	ErrRegistryActive = errors.New("registry is active, registration is closed")
	ErrNoDecoder      = errors.New("deployment has no decoder")
	ErrNoContract     = errors.New("log has no originating deployment")
)

// DecodeError reports a log that could not be decoded for its topic.
type DecodeError struct {
	TopicID common.Hash
	Network string
	Log     model.RawLog
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode topic %s on %s (%s): %v", e.TopicID.Hex(), e.Network, e.Log.Address.Hex(), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Record converts the error into its persisted form.
func (e *DecodeError) Record() model.DecodeError {
	rec := model.DecodeError{
		Network:     e.Network,
		Address:     e.Log.Address.Hex(),
		TopicID:     e.TopicID.Hex(),
		BlockNumber: e.Log.BlockNumber,
		LogIndex:    e.Log.LogIndex,
		Data:        hexutil.Encode(e.Log.Data),
		Error:       e.Err.Error(),
	}
	if e.Log.TxHash != nil {
		rec.TxHash = e.Log.TxHash.Hex()
	}
	return rec
}

// HandlerError wraps a failure returned by a registered handler.
type HandlerError struct {
	TopicID common.Hash
	Event   string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s (%s): %v", e.Event, e.TopicID.Hex(), e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
