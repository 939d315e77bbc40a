package model

// TypedEvent is a decoded vault log.
type TypedEvent struct {
	Seq       uint64      `json:"seq"`
	Address   string      `json:"address"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
}
