package decoder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
	"eventRelay/internal/registry"
)

// ERC20Decoder decodes ERC20 Transfer and Approval events.
type ERC20Decoder struct {
	tokenABI abi.ABI
}

// NewERC20Decoder builds an ERC20 decoder.
func NewERC20Decoder() (*ERC20Decoder, error) {
	tokenABI, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return &ERC20Decoder{tokenABI: tokenABI}, nil
}

// Transfer returns the Transfer event definition.
func (d *ERC20Decoder) Transfer() registry.EventDefinition[model.TransferEventData] {
	event := d.tokenABI.Events["Transfer"]
	return registry.EventDefinition[model.TransferEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.TransferEventData, error) {
			from, to, value, err := decodeAddressPairValue(event, topics, data)
			if err != nil {
				return model.TransferEventData{}, err
			}
			return model.TransferEventData{From: from.Hex(), To: to.Hex(), Value: value}, nil
		},
	}
}

// Approval returns the Approval event definition.
func (d *ERC20Decoder) Approval() registry.EventDefinition[model.ApprovalEventData] {
	event := d.tokenABI.Events["Approval"]
	return registry.EventDefinition[model.ApprovalEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.ApprovalEventData, error) {
			owner, spender, value, err := decodeAddressPairValue(event, topics, data)
			if err != nil {
				return model.ApprovalEventData{}, err
			}
			return model.ApprovalEventData{Owner: owner.Hex(), Spender: spender.Hex(), Value: value}, nil
		},
	}
}

// decodeAddressPairValue reads events shaped (address indexed, address indexed, uint256).
func decodeAddressPairValue(event abi.Event, topics []common.Hash, data []byte) (common.Address, common.Address, string, error) {
	indexedTopics, err := indexedTopics(event, topics)
	if err != nil {
		return common.Address{}, common.Address{}, "", err
	}
	indexed := make(map[string]interface{}, 2)
	if err := abi.ParseTopicsIntoMap(indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return common.Address{}, common.Address{}, "", fmt.Errorf("parse topics: %w", err)
	}
	args := indexedArguments(event.Inputs)
	first, err := asAddress(indexed[args[0].Name])
	if err != nil {
		return common.Address{}, common.Address{}, "", err
	}
	second, err := asAddress(indexed[args[1].Name])
	if err != nil {
		return common.Address{}, common.Address{}, "", err
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return common.Address{}, common.Address{}, "", err
	}
	if len(values) != 1 {
		return common.Address{}, common.Address{}, "", fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, "", err
	}
	return first, second, value.String(), nil
}
