package model

// DecodeError records a decode failure for a log.
type DecodeError struct {
	Network     string  `json:"network"`
	Address     string  `json:"address"`
	TopicID     string  `json:"topic_id"`
	BlockNumber *uint64 `json:"block_number,omitempty"`
	TxHash      string  `json:"tx_hash,omitempty"`
	LogIndex    *uint64 `json:"log_index,omitempty"`
	Data        string  `json:"data"`
	Error       string  `json:"error"`
}
