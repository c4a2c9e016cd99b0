package sqlite

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCursorSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.LoadCursor(ctx, "bsc/pool/Swap/0x01"); err != nil || ok {
		t.Fatalf("empty cursor: ok=%v err=%v", ok, err)
	}
	if err := store.SaveCursor(ctx, "bsc/pool/Swap/0x01", 10); err != nil {
		t.Fatalf("save cursor: %v", err)
	}
	if err := store.SaveCursor(ctx, "bsc/pool/Swap/0x01", 20); err != nil {
		t.Fatalf("save cursor update: %v", err)
	}
	block, ok, err := store.LoadCursor(ctx, "bsc/pool/Swap/0x01")
	if err != nil || !ok || block != 20 {
		t.Fatalf("cursor not updated: %d ok=%v err=%v", block, ok, err)
	}
}

func TestPutEventsIgnoresReplays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	block, logIndex := uint64(5), uint64(3)
	tx := common.HexToHash("0xabc")
	record := model.EventRecord{
		Contract:  "token",
		EventName: "Transfer",
		TopicID:   common.HexToHash("0x01").Hex(),
		TxInformation: model.TxInformation{
			Network:         "bsc",
			Address:         common.HexToAddress("0x02"),
			BlockNumber:     &block,
			TransactionHash: &tx,
			LogIndex:        &logIndex,
		},
		Decoded: model.TransferEventData{From: "a", To: "b", Value: "1"},
	}

	if err := store.PutEvents(ctx, []model.EventRecord{record}); err != nil {
		t.Fatalf("put events: %v", err)
	}
	if err := store.PutEvents(ctx, []model.EventRecord{record}); err != nil {
		t.Fatalf("put events replay: %v", err)
	}
	n, err := store.CountEvents(ctx, "Transfer")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stored event, got %d", n)
	}
}

func TestPutDecodeError(t *testing.T) {
	store := newTestStore(t)
	block := uint64(9)
	if err := store.PutDecodeError(model.DecodeError{
		Network:     "bsc",
		Address:     "0x02",
		TopicID:     "0x01",
		BlockNumber: &block,
		Data:        "0x",
		Error:       "boom",
	}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}
	var n int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM decode_errors WHERE error = 'boom'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 decode error, got %d", n)
	}
}

func transferRecords(stream, batch, n int) []model.EventRecord {
	records := make([]model.EventRecord, n)
	for i := range records {
		block := uint64(batch)
		logIndex := uint64(i)
		tx := common.BigToHash(big.NewInt(int64(stream*1000 + batch)))
		records[i] = model.EventRecord{
			Contract:  "token",
			EventName: "Transfer",
			TopicID:   common.HexToHash("0x01").Hex(),
			TxInformation: model.TxInformation{
				Network:         "bsc",
				Address:         common.HexToAddress("0x02"),
				BlockNumber:     &block,
				TransactionHash: &tx,
				LogIndex:        &logIndex,
			},
			Decoded: model.TransferEventData{From: "a", To: "b", Value: "1"},
		}
	}
	return records
}

func TestConcurrentWritersShareStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const streams, batches, perBatch = 8, 10, 25
	var wg sync.WaitGroup
	errs := make(chan error, streams*batches)
	for g := 0; g < streams; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			name := fmt.Sprintf("bsc/token/Transfer/%d", g)
			for b := 0; b < batches; b++ {
				if err := store.PutEvents(ctx, transferRecords(g, b, perBatch)); err != nil {
					errs <- fmt.Errorf("stream %d batch %d: %w", g, b, err)
					return
				}
				if err := store.SaveCursor(ctx, name, uint64(b)); err != nil {
					errs <- fmt.Errorf("stream %d cursor %d: %w", g, b, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write: %v", err)
	}

	n, err := store.CountEvents(ctx, "Transfer")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != streams*batches*perBatch {
		t.Fatalf("expected %d events, got %d", streams*batches*perBatch, n)
	}
	for g := 0; g < streams; g++ {
		block, ok, err := store.LoadCursor(ctx, fmt.Sprintf("bsc/token/Transfer/%d", g))
		if err != nil || !ok || block != batches-1 {
			t.Fatalf("stream %d cursor: %d ok=%v err=%v", g, block, ok, err)
		}
	}
}
