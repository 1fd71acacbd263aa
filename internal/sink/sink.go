// Package sink archives accepted location samples to pluggable writers.
package sink

import "time"

// Record is one archived location sample.
type Record struct {
	DeviceID   string    `json:"device_id"`
	SessionID  string    `json:"session_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  float64   `json:"accuracy_m"`
	Tier       string    `json:"tier"`
	CapturedAt time.Time `json:"ts"`
}

// Writer is an interface to support different archive destinations.
type Writer interface {
	Write(Record) error
}

// Optional: writers can also support batch mode.
type batchWriter interface {
	WriteBatch([]Record) error
}
