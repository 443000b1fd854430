package store

import (
	"sync"

	"github.com/tinytelemetry/cascade/internal/record"
)

// Memory keeps records in process memory. It backs tests and short-lived
// tooling where nothing should touch disk.
type Memory struct {
	name string
	mu   sync.Mutex
	recs []*record.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

// NewMemoryFromOptions builds a memory store; it takes no options.
func NewMemoryFromOptions(name string, _ Options) (Store, error) {
	return NewMemory(name), nil
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Write(r *record.Record) error {
	if r.Suppressed() {
		return nil
	}
	clone := *r
	clone.Tags = record.CloneTags(r.Tags)
	m.mu.Lock()
	m.recs = append(m.recs, &clone)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read(f record.Filter) ([]*record.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*record.Record
	for _, r := range m.recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *Memory) Close() error { return nil }
