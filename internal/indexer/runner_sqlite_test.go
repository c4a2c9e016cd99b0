package indexer

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"eventRelay/internal/registry"
	"eventRelay/internal/storage"
	"eventRelay/internal/storage/sqlite"
)

var mintTopic = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")

func deploymentLog(address common.Address, topic common.Hash, block uint64) types.Log {
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{topic},
		Data:        common.LeftPadBytes(new(big.Int).SetUint64(block).Bytes(), 32),
		BlockNumber: block,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		TxHash:      txHashFor(address, topic, block),
	}
}

// txHashFor derives a distinct tx hash per (address, topic, block).
func txHashFor(address common.Address, topic common.Hash, block uint64) common.Hash {
	var h common.Hash
	copy(h[:], address.Bytes())
	h[20] = topic[0]
	copy(h[24:], new(big.Int).SetUint64(block).FillBytes(make([]byte, 8)))
	return h
}

func TestRunnerStreamsShareSQLiteStore(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	const head = 40
	second := common.HexToAddress("0x2222222222222222222222222222222222222222")
	provider := &fakeProvider{head: head}
	for block := uint64(1); block <= head; block++ {
		for _, address := range []common.Address{poolAddress, second} {
			provider.logs = append(provider.logs,
				deploymentLog(address, swapTopic, block),
				deploymentLog(address, mintTopic, block),
			)
		}
	}

	contract := registry.ContractInfo{
		Name: "pool",
		Details: []registry.NetworkContract{
			{Network: "bsc", Address: poolAddress.Hex(), Provider: provider},
			{Network: "bsc", Address: second.Hex(), Provider: provider},
		},
	}
	decode := func(_ []common.Hash, data []byte) (uint64, error) {
		return new(big.Int).SetBytes(data).Uint64(), nil
	}

	reg := registry.New()
	for name, topic := range map[string]common.Hash{"Swap": swapTopic, "Mint": mintTopic} {
		def := registry.EventDefinition[uint64]{Name: name, TopicID: topic, Decode: decode}
		event, err := registry.NewEvent(def, contract, storage.NewHandler[uint64](contract.Name, name, topic, store))
		if err != nil {
			t.Fatalf("new event %s: %v", name, err)
		}
		if err := reg.Register(event); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	runner := NewRunner(RunConfig{BatchSize: 1}, reg, store, nil, nil, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx := context.Background()
	for _, name := range []string{"Swap", "Mint"} {
		n, err := store.CountEvents(ctx, name)
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 2*head {
			t.Fatalf("%s: expected %d stored events, got %d", name, 2*head, n)
		}
		for _, address := range []common.Address{poolAddress, second} {
			cursor := fmt.Sprintf("bsc/pool/%s/%s", name, address.Hex())
			block, ok, err := store.LoadCursor(ctx, cursor)
			if err != nil || !ok || block != head {
				t.Fatalf("cursor %s: %d ok=%v err=%v", cursor, block, ok, err)
			}
		}
	}
}
