package record

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
)

// Filter narrows a store read. Zero fields match everything; Start/Finish
// bound the timestamp as a closed interval when non-zero.
type Filter struct {
	Level  level.Level
	Logger string
	Topic  string
	Tags   map[string]string
	Start  time.Time
	Finish time.Time
}

// Validate rejects an inverted time range. An inverted range is a caller
// error, not an empty result.
func (f Filter) Validate() error {
	if !f.Start.IsZero() && !f.Finish.IsZero() && f.Start.After(f.Finish) {
		return fmt.Errorf("record: filter start %v after finish %v", f.Start, f.Finish)
	}
	return nil
}

// Match reports whether r satisfies every set field of the filter.
func (f Filter) Match(r *Record) bool {
	if f.Level != level.Unset && r.Level != f.Level {
		return false
	}
	if f.Logger != "" && r.Logger != f.Logger {
		return false
	}
	if f.Topic != "" && r.Topic != f.Topic {
		return false
	}
	for k, v := range f.Tags {
		if r.Tags[k] != v {
			return false
		}
	}
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.Finish.IsZero() && r.Timestamp.After(f.Finish) {
		return false
	}
	return true
}

// Writer is the mandatory store capability.
type Writer interface {
	Write(r *Record) error
}

// Reader is the optional store capability. Stores without retrieval return
// a distinct unsupported error from Read.
type Reader interface {
	Read(f Filter) ([]*Record, error)
}
