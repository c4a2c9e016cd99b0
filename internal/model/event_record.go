package model

// EventRecord is a decoded event as written to sinks.
type EventRecord struct {
	Contract  string `json:"contract"`
	EventName string `json:"event_name"`
	TopicID   string `json:"topic_id"`
	TxInformation
	Decoded interface{} `json:"decoded"`
}
