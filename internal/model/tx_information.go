package model

import "github.com/ethereum/go-ethereum/common"

// TxInformation is the provenance of a decoded event. Everything except the
// network and the emitting address is absent for a pending log.
type TxInformation struct {
	Network             string         `json:"network"`
	Address             common.Address `json:"address"`
	BlockHash           *common.Hash   `json:"block_hash,omitempty"`
	BlockNumber         *uint64        `json:"block_number,omitempty"`
	TransactionHash     *common.Hash   `json:"tx_hash,omitempty"`
	TransactionIndex    *uint64        `json:"tx_index,omitempty"`
	LogIndex            *uint64        `json:"log_index,omitempty"`
	TransactionLogIndex *uint64        `json:"tx_log_index,omitempty"`
	LogType             *string        `json:"log_type,omitempty"`
	Removed             *bool          `json:"removed,omitempty"`
}

// Pending reports whether the log has not been mined into a block yet.
func (t TxInformation) Pending() bool {
	return t.BlockHash == nil
}

// IsRemoved reports whether the log was retracted by a reorg.
func (t TxInformation) IsRemoved() bool {
	return t.Removed != nil && *t.Removed
}
