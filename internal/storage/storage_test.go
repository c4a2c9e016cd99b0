package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/model"
	"eventRelay/internal/registry"
)

type memorySink struct {
	batches [][]model.EventRecord
	err     error
}

func (m *memorySink) PutEvents(_ context.Context, events []model.EventRecord) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, events)
	return nil
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var row map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, row)
	}
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := NewJsonlStorage(path)
	ctx := context.Background()

	first := model.EventRecord{Contract: "pool", EventName: "Swap", Decoded: map[string]any{"n": 1}}
	second := model.EventRecord{Contract: "pool", EventName: "Mint", Decoded: map[string]any{"n": 2}}
	if err := sink.PutEvents(ctx, []model.EventRecord{first}); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := sink.PutEvents(ctx, []model.EventRecord{second}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := sink.PutEvents(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	rows := readLines(t, path)
	if len(rows) != 2 || rows[0]["event_name"] != "Swap" || rows[1]["event_name"] != "Mint" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestJsonlStorageDecodeErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.jsonl")
	sink := NewJsonlStorage(path)
	if err := sink.PutDecodeError(model.DecodeError{Network: "bsc", TopicID: "0x01", Error: "bad data"}); err != nil {
		t.Fatalf("put decode error: %v", err)
	}
	rows := readLines(t, path)
	if len(rows) != 1 || rows[0]["error"] != "bad data" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestHandlerWritesEverySink(t *testing.T) {
	topic := common.HexToHash("0xfeed")
	a, b := &memorySink{}, &memorySink{}
	handler := NewHandler[model.TransferEventData]("token", "Transfer", topic, a, b)

	block := uint64(7)
	events := []registry.Event[model.TransferEventData]{
		{Data: model.TransferEventData{Value: "1"}, Tx: model.TxInformation{Network: "bsc", BlockNumber: &block}},
		{Data: model.TransferEventData{Value: "2"}, Tx: model.TxInformation{Network: "bsc"}},
	}
	if err := handler(context.Background(), events); err != nil {
		t.Fatalf("handle: %v", err)
	}

	for _, sink := range []*memorySink{a, b} {
		if len(sink.batches) != 1 || len(sink.batches[0]) != 2 {
			t.Fatalf("unexpected batches: %+v", sink.batches)
		}
		rec := sink.batches[0][0]
		if rec.Contract != "token" || rec.EventName != "Transfer" || rec.TopicID != topic.Hex() {
			t.Fatalf("record labels: %+v", rec)
		}
		if rec.BlockNumber == nil || *rec.BlockNumber != 7 {
			t.Fatalf("provenance lost: %+v", rec)
		}
		if sink.batches[0][1].Decoded.(model.TransferEventData).Value != "2" {
			t.Fatalf("order not kept")
		}
	}
}

func TestHandlerStopsOnSinkError(t *testing.T) {
	boom := errors.New("disk full")
	failing, after := &memorySink{err: boom}, &memorySink{}
	handler := NewHandler[int]("token", "Transfer", common.Hash{}, failing, after)

	err := handler(context.Background(), []registry.Event[int]{{Data: 1}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(after.batches) != 0 {
		t.Fatalf("later sinks must not run after a failure")
	}
}
