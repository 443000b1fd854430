package record

import (
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
)

// Record is the canonical unit written to a store. It is the one type that
// crosses the logger, storage, and metric-evaluation boundaries.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Hostname  string            `json:"hostname,omitempty"`
	Level     level.Level       `json:"level"`
	Logger    string            `json:"logger"` // name of the logger that emitted the record
	Topic     string            `json:"topic,omitempty"` // call-site identifier
	Value     any               `json:"value,omitempty"` // arbitrary structured payload, may be nil
	Message   string            `json:"message"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Suppressed reports whether the record carries no message. A suppressed
// record is never persisted; it is a pure no-op, not an event.
func (r *Record) Suppressed() bool {
	return r.Message == ""
}

// CloneTags returns a private copy of the tag map, never nil.
func CloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// MergeTags overlays extra onto base without mutating either; extra wins
// on conflict.
func MergeTags(base, extra map[string]string) map[string]string {
	out := CloneTags(base)
	for k, v := range extra {
		out[k] = v
	}
	return out
}
