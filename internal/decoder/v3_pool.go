package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
	"eventRelay/internal/registry"
)

// V3PoolDecoder decodes PancakeSwap V3 / Uniswap V3 pool events.
type V3PoolDecoder struct {
	poolABI abi.ABI
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder() (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	return &V3PoolDecoder{poolABI: poolABI}, nil
}

// Swap returns the Swap event definition.
func (d *V3PoolDecoder) Swap() registry.EventDefinition[model.SwapEventData] {
	event := d.poolABI.Events["Swap"]
	return registry.EventDefinition[model.SwapEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.SwapEventData, error) {
			return decodeSwap(event, topics, data)
		},
	}
}

// Mint returns the Mint event definition.
func (d *V3PoolDecoder) Mint() registry.EventDefinition[model.MintEventData] {
	event := d.poolABI.Events["Mint"]
	return registry.EventDefinition[model.MintEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.MintEventData, error) {
			return decodeMint(event, topics, data)
		},
	}
}

// Burn returns the Burn event definition.
func (d *V3PoolDecoder) Burn() registry.EventDefinition[model.BurnEventData] {
	event := d.poolABI.Events["Burn"]
	return registry.EventDefinition[model.BurnEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.BurnEventData, error) {
			return decodeBurn(event, topics, data)
		},
	}
}

// Collect returns the Collect event definition.
func (d *V3PoolDecoder) Collect() registry.EventDefinition[model.CollectEventData] {
	event := d.poolABI.Events["Collect"]
	return registry.EventDefinition[model.CollectEventData]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (model.CollectEventData, error) {
			return decodeCollect(event, topics, data)
		},
	}
}

type positionTopics struct {
	Owner     common.Address
	TickLower *big.Int
	TickUpper *big.Int
}

func (p positionTopics) ticks() (int32, int32, error) {
	lower, err := int24FromBig(p.TickLower)
	if err != nil {
		return 0, 0, err
	}
	upper, err := int24FromBig(p.TickUpper)
	if err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}

func parsePositionTopics(event abi.Event, topics []common.Hash) (positionTopics, error) {
	indexedTopics, err := indexedTopics(event, topics)
	if err != nil {
		return positionTopics{}, err
	}
	var indexed positionTopics
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return positionTopics{}, fmt.Errorf("parse topics: %w", err)
	}
	return indexed, nil
}

func decodeSwap(event abi.Event, topics []common.Hash, data []byte) (model.SwapEventData, error) {
	indexedTopics, err := indexedTopics(event, topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amounts := make([]*big.Int, 4)
	for i := range amounts {
		if amounts[i], err = asBigInt(values[i]); err != nil {
			return model.SwapEventData{}, err
		}
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amounts[0].String(),
		Amount1:      amounts[1].String(),
		SqrtPriceX96: amounts[2].String(),
		Liquidity:    amounts[3].String(),
		Tick:         tick,
	}, nil
}

func decodeMint(event abi.Event, topics []common.Hash, data []byte) (model.MintEventData, error) {
	indexed, err := parsePositionTopics(event, topics)
	if err != nil {
		return model.MintEventData{}, err
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return model.MintEventData{}, err
	}
	if len(values) != 4 {
		return model.MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.MintEventData{}, err
	}
	tickLower, tickUpper, err := indexed.ticks()
	if err != nil {
		return model.MintEventData{}, err
	}

	return model.MintEventData{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func decodeBurn(event abi.Event, topics []common.Hash, data []byte) (model.BurnEventData, error) {
	indexed, err := parsePositionTopics(event, topics)
	if err != nil {
		return model.BurnEventData{}, err
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return model.BurnEventData{}, err
	}
	if len(values) != 3 {
		return model.BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.BurnEventData{}, err
	}
	tickLower, tickUpper, err := indexed.ticks()
	if err != nil {
		return model.BurnEventData{}, err
	}

	return model.BurnEventData{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func decodeCollect(event abi.Event, topics []common.Hash, data []byte) (model.CollectEventData, error) {
	indexed, err := parsePositionTopics(event, topics)
	if err != nil {
		return model.CollectEventData{}, err
	}

	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return model.CollectEventData{}, err
	}
	if len(values) != 3 {
		return model.CollectEventData{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}

	recipient, err := asAddress(values[0])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.CollectEventData{}, err
	}
	tickLower, tickUpper, err := indexed.ticks()
	if err != nil {
		return model.CollectEventData{}, err
	}

	return model.CollectEventData{
		Owner:     indexed.Owner.Hex(),
		Recipient: recipient.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}
