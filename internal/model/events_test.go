package model

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:       "0x1111111111111111111111111111111111111111",
		Recipient:    "0x2222222222222222222222222222222222222222",
		Amount0:      "12345678901234567890",
		Amount1:      "-42",
		SqrtPriceX96: "79228162514264337593543950336",
		Liquidity:    "5000000000000000000",
		Tick:         10,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestEventRecordFlattensProvenance(t *testing.T) {
	block := uint64(42)
	removed := false
	record := EventRecord{
		Contract:  "pool",
		EventName: "Swap",
		TopicID:   "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67",
		TxInformation: TxInformation{
			Network:     "bsc",
			Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
			BlockNumber: &block,
			Removed:     &removed,
		},
		Decoded: TransferEventData{Value: "1"},
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["network"] != "bsc" || decoded["block_number"] != float64(42) {
		t.Fatalf("provenance not flattened: %s", data)
	}
	if decoded["removed"] != false {
		t.Fatalf("explicit removed=false must be kept: %s", data)
	}
	if _, ok := decoded["tx_hash"]; ok {
		t.Fatalf("absent tx hash must be omitted: %s", data)
	}
}
