package registry

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/chain"
	"eventRelay/internal/model"
)

// Decoder decodes the topics and data of one log into an event payload.
type Decoder func(topics []common.Hash, data []byte) (any, error)

// NetworkContract binds one deployment of a contract to its decoder and
// fetch range.
type NetworkContract struct {
	Network      string
	Address      string
	Provider     chain.Provider
	Decoder      Decoder
	StartBlock   *uint64
	EndBlock     *uint64
	PollingEvery *time.Duration
}

// DecodeLog decodes a log emitted by this deployment. It never panics:
// a decoder panic is returned as a *DecodeError.
func (n *NetworkContract) DecodeLog(log model.RawLog) (decoded any, err error) {
	topicID, _ := log.Topic0()
	fail := func(cause error) *DecodeError {
		return &DecodeError{TopicID: topicID, Network: n.Network, Log: log, Err: cause}
	}

	if n.Decoder == nil {
		return nil, fail(ErrNoDecoder)
	}

	defer func() {
		if r := recover(); r != nil {
			decoded = nil
			err = fail(fmt.Errorf("decoder panic: %v", r))
		}
	}()

	decoded, err = n.Decoder(log.Topics, log.Data)
	if err != nil {
		return nil, fail(err)
	}
	return decoded, nil
}

// ContractAddress returns the parsed deployment address.
func (n *NetworkContract) ContractAddress() common.Address {
	return common.HexToAddress(n.Address)
}

// ContractInfo groups the deployments of one contract.
type ContractInfo struct {
	Name    string
	ABI     string
	Details []NetworkContract
}

// Validate checks that the contract has at least one deployment.
func (c ContractInfo) Validate() error {
	if len(c.Details) == 0 {
		return fmt.Errorf("contract %s: %w", c.Name, ErrNoDeployments)
	}
	return nil
}

// LogWithContract pairs a raw log with the deployment it was fetched from.
type LogWithContract struct {
	Log      model.RawLog
	Contract *NetworkContract
}
