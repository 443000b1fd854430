// Package store defines the pluggable sink/source contract for log records,
// the factory registry that builds stores from declarative configuration,
// and the built-in stream, memory, and webhook backends.
package store

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/tinytelemetry/cascade/internal/record"
)

// ErrReadUnsupported marks a store that only accepts writes. Callers must be
// able to tell "this backend cannot read" apart from an I/O failure.
var ErrReadUnsupported = errors.New("store: read not supported")

// Store is a named sink (and optionally source) of log records. Write is
// mandatory; a write-only store returns ErrReadUnsupported from Read. A
// store owns its handle for its full lifetime and must tolerate concurrent
// writers.
type Store interface {
	Name() string
	Write(r *record.Record) error
	Read(f record.Filter) ([]*record.Record, error)
	Close() error
}

// Options carries the type-specific fields of a store definition.
type Options map[string]any

// String reads a string option, with ok=false when absent.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key].(string)
	return v, ok
}

// Int reads an integer option regardless of the decoder's numeric type.
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Bool reads a boolean option.
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o[key].(bool)
	return v, ok
}

// Factory builds a store from its declarative options.
type Factory func(name string, opts Options) (Store, error)

// Registry maps a store type tag to its factory. It is a constructed object
// passed to namespace resolution, not ambient global state, so tests and
// plugins can carry their own.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a registry with the built-in backends registered:
// "stream", "memory", and "webhook".
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("stream", NewStreamFromOptions)
	r.Register("memory", NewMemoryFromOptions)
	r.Register("webhook", NewWebhookFromOptions)
	return r
}

// Register installs a factory for tag, overwriting with a warning so tests
// and plugins can replace built-ins.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		log.Printf("store: overwriting factory for type %q", tag)
	}
	r.factories[tag] = f
}

// Build constructs a named store of the given type.
func (r *Registry) Build(tag, name string, opts Options) (Store, error) {
	r.mu.Lock()
	f, ok := r.factories[tag]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown store type %q (registered: %v)", tag, r.Tags())
	}
	return f(name, opts)
}

// Tags returns the registered type tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.factories))
	for t := range r.factories {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
