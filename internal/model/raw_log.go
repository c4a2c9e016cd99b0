package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// RawLog is a chain log as delivered by the node. Positional fields are
// optional because a pending log has no block or transaction yet.
type RawLog struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockHash   *common.Hash
	BlockNumber *uint64
	TxHash      *common.Hash
	TxIndex     *uint64
	LogIndex    *uint64
	TxLogIndex  *uint64
	LogType     *string
	Removed     *bool
}

// rawLogJSON mirrors the eth_getLogs object.
type rawLogJSON struct {
	Address     common.Address  `json:"address"`
	Topics      []common.Hash   `json:"topics"`
	Data        hexutil.Bytes   `json:"data"`
	BlockHash   *common.Hash    `json:"blockHash,omitempty"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber,omitempty"`
	TxHash      *common.Hash    `json:"transactionHash,omitempty"`
	TxIndex     *hexutil.Uint64 `json:"transactionIndex,omitempty"`
	LogIndex    *hexutil.Uint64 `json:"logIndex,omitempty"`
	TxLogIndex  *hexutil.Uint64 `json:"transactionLogIndex,omitempty"`
	LogType     *string         `json:"logType,omitempty"`
	Removed     *bool           `json:"removed,omitempty"`
}

// MarshalJSON encodes the log in JSON-RPC form.
func (l RawLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawLogJSON{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockHash:   l.BlockHash,
		BlockNumber: (*hexutil.Uint64)(l.BlockNumber),
		TxHash:      l.TxHash,
		TxIndex:     (*hexutil.Uint64)(l.TxIndex),
		LogIndex:    (*hexutil.Uint64)(l.LogIndex),
		TxLogIndex:  (*hexutil.Uint64)(l.TxLogIndex),
		LogType:     l.LogType,
		Removed:     l.Removed,
	})
}

// UnmarshalJSON decodes a JSON-RPC log object. Missing or null positional
// fields stay absent.
func (l *RawLog) UnmarshalJSON(data []byte) error {
	var raw rawLogJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = RawLog{
		Address:     raw.Address,
		Topics:      raw.Topics,
		Data:        raw.Data,
		BlockHash:   raw.BlockHash,
		BlockNumber: (*uint64)(raw.BlockNumber),
		TxHash:      raw.TxHash,
		TxIndex:     (*uint64)(raw.TxIndex),
		LogIndex:    (*uint64)(raw.LogIndex),
		TxLogIndex:  (*uint64)(raw.TxLogIndex),
		LogType:     raw.LogType,
		Removed:     raw.Removed,
	}
	return nil
}

// Topic0 returns the first topic, if any.
func (l RawLog) Topic0() (common.Hash, bool) {
	if len(l.Topics) == 0 {
		return common.Hash{}, false
	}
	return l.Topics[0], true
}

// RawLogFromTypes converts a go-ethereum log. go-ethereum zero-fills the
// positional fields of a pending log, so a zero block hash (or tx hash) is
// treated as absent.
func RawLogFromTypes(log types.Log) RawLog {
	topics := make([]common.Hash, len(log.Topics))
	copy(topics, log.Topics)
	data := make([]byte, len(log.Data))
	copy(data, log.Data)

	logIndex := uint64(log.Index)
	removed := log.Removed
	out := RawLog{
		Address:  log.Address,
		Topics:   topics,
		Data:     data,
		LogIndex: &logIndex,
		Removed:  &removed,
	}

	if log.BlockHash != (common.Hash{}) {
		blockHash := log.BlockHash
		blockNumber := log.BlockNumber
		out.BlockHash = &blockHash
		out.BlockNumber = &blockNumber
	}
	if log.TxHash != (common.Hash{}) {
		txHash := log.TxHash
		txIndex := uint64(log.TxIndex)
		out.TxHash = &txHash
		out.TxIndex = &txIndex
	}
	return out
}
