package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
)

func TestToInt8AndHashText(t *testing.T) {
	if toInt8(nil) != nil || hashText(nil) != nil {
		t.Fatalf("absent values must map to NULL")
	}
	v := uint64(17)
	if got := toInt8(&v); got == nil || *got != 17 {
		t.Fatalf("toInt8: %v", got)
	}
	h := common.HexToHash("0x01")
	if got := hashText(&h); got == nil || *got != h.Hex() {
		t.Fatalf("hashText: %v", got)
	}
}

// TestStoreRoundTrip runs against a real database when INDEXER_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("INDEXER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("INDEXER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	block, logIndex := uint64(10), uint64(0)
	tx := common.HexToHash("0xabc")
	record := model.EventRecord{
		Contract:  "pool",
		EventName: "Swap",
		TopicID:   common.HexToHash("0x01").Hex(),
		TxInformation: model.TxInformation{
			Network:         "test",
			Address:         common.HexToAddress("0x01"),
			BlockNumber:     &block,
			TransactionHash: &tx,
			LogIndex:        &logIndex,
		},
		Decoded: model.TransferEventData{Value: "1"},
	}
	for i := 0; i < 2; i++ {
		if err := store.PutEvents(ctx, []model.EventRecord{record}); err != nil {
			t.Fatalf("put events (%d): %v", i, err)
		}
	}

	if err := store.SaveCursor(ctx, "test/pool/Swap", 99); err != nil {
		t.Fatalf("save cursor: %v", err)
	}
	got, ok, err := store.LoadCursor(ctx, "test/pool/Swap")
	if err != nil || !ok || got != 99 {
		t.Fatalf("load cursor: %d %v %v", got, ok, err)
	}
}
