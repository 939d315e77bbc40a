package model

// DecodeError records a journal line that could not be decoded.
type DecodeError struct {
	Line    int    `json:"line"`
	Seq     uint64 `json:"seq"`
	Address string `json:"address"`
	Topic0  string `json:"topic0"`
	Error   string `json:"error"`
}
