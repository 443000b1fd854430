// Package logger implements the hierarchical dispatch tree: a named node
// filters events by level, fans qualifying events out to its stores and
// child loggers, and overlays its own tags without touching the caller's.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

var hostname = func() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}()

func nowUnix() int64 { return time.Now().Unix() }

// Logger is an immutable node in the dispatch tree. Only the tag overlay is
// mutable; AddTags and ClearTags need external synchronization when a logger
// is shared across concurrent call-sites; the safe pattern is WithTags,
// which clones.
type Logger struct {
	name     string
	level    level.Level
	stores   []store.Store
	children []*Logger

	mu   sync.Mutex
	tags map[string]string

	dispatcher *Dispatcher // nil means synchronous delivery
}

// Option adjusts logger construction.
type Option func(*Logger)

// WithDispatcher routes store writes through a fire-and-forget pool.
func WithDispatcher(d *Dispatcher) Option {
	return func(l *Logger) { l.dispatcher = d }
}

// WithInitialTags seeds the tag overlay.
func WithInitialTags(tags map[string]string) Option {
	return func(l *Logger) { l.tags = record.CloneTags(tags) }
}

// New builds a logger. A logger that targets no store and no child would
// drop every message, so that configuration is rejected. A child more
// verbose than its parent can never receive the events the parent filters
// out; that earns a warning, not an error.
func New(name string, lvl level.Level, stores []store.Store, children []*Logger, opts ...Option) (*Logger, error) {
	if len(stores) == 0 && len(children) == 0 {
		return nil, fmt.Errorf("logger: %q has no stores and no children", name)
	}
	l := &Logger{
		name:     name,
		level:    lvl,
		stores:   append([]store.Store(nil), stores...),
		children: append([]*Logger(nil), children...),
		tags:     map[string]string{},
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, child := range children {
		if child.level != level.Unset && child.level < lvl {
			log.Printf("logger: child %q (level %v) is more verbose than parent %q (level %v); it will never see the filtered events",
				child.name, child.level, name, lvl)
		}
	}
	return l, nil
}

// Name returns the logger's name.
func (l *Logger) Name() string { return l.name }

// Level returns the logger's threshold.
func (l *Logger) Level() level.Level { return l.level }

// Child returns the direct child with the given name, or nil.
func (l *Logger) Child(name string) *Logger {
	for _, c := range l.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Stores returns the logger's target stores in registration order.
func (l *Logger) Stores() []store.Store {
	return append([]store.Store(nil), l.stores...)
}

// Post filters, tags, and fans an event out to stores and children. Store
// writes are fire-and-forget when a dispatcher is attached; failures are
// reported, never returned. The message may be a string, an error, or any
// printable value; a nil message is a pure suppression.
func (l *Logger) Post(lvl level.Level, topic string, value any, message any, tags map[string]string) {
	l.post(time.Now(), lvl, topic, value, renderMessage(message), tags, false)
}

// PostSync is Post with synchronous delivery forced through the whole
// subtree: it returns only after every store has been attempted.
func (l *Logger) PostSync(lvl level.Level, topic string, value any, message any, tags map[string]string) {
	l.post(time.Now(), lvl, topic, value, renderMessage(message), tags, true)
}

// Debug posts at Debug with the message fragments spliced together.
func (l *Logger) Debug(topic string, parts ...any) {
	l.Post(level.Debug, topic, nil, splice(parts), nil)
}

// Info posts at Info with the message fragments spliced together.
func (l *Logger) Info(topic string, parts ...any) {
	l.Post(level.Info, topic, nil, splice(parts), nil)
}

// Warn posts at Warn with the message fragments spliced together.
func (l *Logger) Warn(topic string, parts ...any) {
	l.Post(level.Warn, topic, nil, splice(parts), nil)
}

// Error posts at Error with the message fragments spliced together.
func (l *Logger) Error(topic string, parts ...any) {
	l.Post(level.Error, topic, nil, splice(parts), nil)
}

// post carries one event through the node. The level check runs before any
// store or tag work; children receive the original call-site tags, not the
// merged overlay, and the original timestamp.
func (l *Logger) post(ts time.Time, lvl level.Level, topic string, value any, message string, callTags map[string]string, forceSync bool) {
	if lvl < l.level {
		return
	}
	async := !forceSync && l.dispatcher != nil

	merged := record.MergeTags(l.snapshotTags(), callTags)
	rec := &record.Record{
		Timestamp: ts,
		Hostname:  hostname,
		Level:     lvl,
		Logger:    l.name,
		Topic:     topic,
		Value:     value,
		Message:   message,
		Tags:      merged,
	}

	for _, st := range l.stores {
		if async {
			l.dispatcher.Enqueue(st, rec)
		} else {
			writeIsolated(st, rec)
		}
	}
	for _, child := range l.children {
		child.post(ts, lvl, topic, value, message, callTags, forceSync)
	}
}

// WithTags returns a clone sharing stores, children, and dispatcher but
// owning a private tag overlay extended with extra. This is the safe way to
// scope tags to one call-site.
func (l *Logger) WithTags(extra map[string]string) *Logger {
	clone := &Logger{
		name:       l.name,
		level:      l.level,
		stores:     l.stores,
		children:   l.children,
		tags:       record.MergeTags(l.snapshotTags(), extra),
		dispatcher: l.dispatcher,
	}
	return clone
}

// AddTags extends the shared overlay in place.
func (l *Logger) AddTags(tags map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range tags {
		l.tags[k] = v
	}
}

// ClearTags empties the shared overlay in place.
func (l *Logger) ClearTags() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tags = map[string]string{}
}

// Tags returns a copy of the current overlay.
func (l *Logger) Tags() map[string]string {
	return l.snapshotTags()
}

func (l *Logger) snapshotTags() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return record.CloneTags(l.tags)
}

// renderMessage normalizes the message argument: nil stays empty (a pure
// suppression), errors render their full text, anything else prints.
func renderMessage(message any) string {
	switch m := message.(type) {
	case nil:
		return ""
	case string:
		return m
	case error:
		return m.Error()
	default:
		return fmt.Sprint(m)
	}
}

// splice collapses message fragments into one space-joined string.
func splice(parts []any) string {
	if len(parts) == 0 {
		return ""
	}
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = renderMessage(p)
	}
	return strings.Join(strs, " ")
}
