package logger

import (
	"errors"
	"sync"
	"testing"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

// failStore fails every write; used to prove per-store isolation.
type failStore struct{ name string }

func (f *failStore) Name() string                    { return f.name }
func (f *failStore) Write(*record.Record) error      { return errors.New("backend down") }
func (f *failStore) Close() error                    { return nil }
func (f *failStore) Read(record.Filter) ([]*record.Record, error) {
	return nil, store.ErrReadUnsupported
}

func mustLogger(t *testing.T, name string, lvl level.Level, stores []store.Store, children []*Logger, opts ...Option) *Logger {
	t.Helper()
	l, err := New(name, lvl, stores, children, opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", name, err)
	}
	return l
}

func TestLevelFilterShortCircuits(t *testing.T) {
	mem := store.NewMemory("m")
	l := mustLogger(t, "web", level.Warn, []store.Store{mem}, nil)

	l.PostSync(level.Info, "x", nil, "below threshold", nil)
	l.PostSync(level.Debug, "x", nil, "below threshold", nil)

	if mem.Len() != 0 {
		t.Errorf("store saw %d writes, want 0 for sub-threshold posts", mem.Len())
	}

	l.PostSync(level.Warn, "x", nil, "at threshold", nil)
	l.PostSync(level.Error, "x", nil, "above threshold", nil)
	if mem.Len() != 2 {
		t.Errorf("store saw %d writes, want 2", mem.Len())
	}
}

func TestFilterAlsoStopsChildPropagation(t *testing.T) {
	childMem := store.NewMemory("cm")
	child := mustLogger(t, "child", level.Debug, []store.Store{childMem}, nil)
	parent := mustLogger(t, "parent", level.Error, nil, []*Logger{child})

	parent.PostSync(level.Info, "x", nil, "filtered at parent", nil)
	if childMem.Len() != 0 {
		t.Errorf("child store saw %d writes, want 0", childMem.Len())
	}
}

func TestFanOutIsolatesStoreFailures(t *testing.T) {
	good := store.NewMemory("good")
	childMem := store.NewMemory("cm")
	child := mustLogger(t, "child", level.On, []store.Store{childMem}, nil)
	l := mustLogger(t, "web", level.On,
		[]store.Store{&failStore{name: "bad"}, good}, []*Logger{child})

	l.PostSync(level.Info, "x", nil, "hello", nil)

	if good.Len() != 1 {
		t.Errorf("good store saw %d writes, want 1 despite sibling failure", good.Len())
	}
	if childMem.Len() != 1 {
		t.Errorf("child store saw %d writes, want 1 despite parent store failure", childMem.Len())
	}
}

func TestTagOverlayMergeAndChildIndependence(t *testing.T) {
	parentMem := store.NewMemory("pm")
	childMem := store.NewMemory("cm")

	child := mustLogger(t, "child", level.On, []store.Store{childMem}, nil,
		WithInitialTags(map[string]string{"tier": "child"}))
	parent := mustLogger(t, "parent", level.On, []store.Store{parentMem}, []*Logger{child},
		WithInitialTags(map[string]string{"tier": "parent", "env": "prod"}))

	parent.PostSync(level.Info, "x", nil, "hello", map[string]string{"req": "42", "env": "staging"})

	precs, _ := parentMem.Read(record.Filter{})
	if len(precs) != 1 {
		t.Fatalf("parent store has %d records, want 1", len(precs))
	}
	// Call-site tags win over the overlay.
	if precs[0].Tags["env"] != "staging" {
		t.Errorf("parent env tag = %q, want call-site \"staging\"", precs[0].Tags["env"])
	}
	if precs[0].Tags["tier"] != "parent" {
		t.Errorf("parent tier tag = %q, want overlay \"parent\"", precs[0].Tags["tier"])
	}

	crecs, _ := childMem.Read(record.Filter{})
	if len(crecs) != 1 {
		t.Fatalf("child store has %d records, want 1", len(crecs))
	}
	// The child applies its own overlay to the original call-site tags;
	// the parent's overlay must not leak down.
	if crecs[0].Tags["tier"] != "child" {
		t.Errorf("child tier tag = %q, want \"child\"", crecs[0].Tags["tier"])
	}
	if _, leaked := crecs[0].Tags["env"]; leaked && crecs[0].Tags["env"] == "prod" {
		t.Error("parent overlay leaked into child record")
	}
	if crecs[0].Tags["req"] != "42" {
		t.Errorf("child req tag = %q, want call-site \"42\"", crecs[0].Tags["req"])
	}
}

func TestWithTagsDoesNotMutateOriginal(t *testing.T) {
	mem := store.NewMemory("m")
	l := mustLogger(t, "web", level.On, []store.Store{mem}, nil,
		WithInitialTags(map[string]string{"env": "prod"}))

	scoped := l.WithTags(map[string]string{"req": "42"})
	if len(l.Tags()) != 1 {
		t.Errorf("original overlay changed: %v", l.Tags())
	}
	if scoped.Tags()["req"] != "42" || scoped.Tags()["env"] != "prod" {
		t.Errorf("scoped overlay = %v, want env+req", scoped.Tags())
	}
}

func TestAddAndClearTags(t *testing.T) {
	mem := store.NewMemory("m")
	l := mustLogger(t, "web", level.On, []store.Store{mem}, nil)

	l.AddTags(map[string]string{"env": "prod"})
	if l.Tags()["env"] != "prod" {
		t.Errorf("AddTags did not apply: %v", l.Tags())
	}
	l.ClearTags()
	if len(l.Tags()) != 0 {
		t.Errorf("ClearTags left %v", l.Tags())
	}
}

func TestInvalidLoggerRejected(t *testing.T) {
	if _, err := New("dropper", level.Info, nil, nil); err == nil {
		t.Error("logger with no stores and no children accepted")
	}
}

func TestMessageRendering(t *testing.T) {
	mem := store.NewMemory("m")
	l := mustLogger(t, "web", level.On, []store.Store{mem}, nil)

	l.PostSync(level.Error, "x", nil, errors.New("wrapped: connection refused"), nil)
	l.Info("x", "part one,", "part two")
	// A nil message is a suppression, never persisted.
	l.PostSync(level.Info, "x", 12.5, nil, nil)

	recs, _ := mem.Read(record.Filter{})
	if len(recs) != 2 {
		t.Fatalf("store has %d records, want 2", len(recs))
	}
	if recs[0].Message != "wrapped: connection refused" {
		t.Errorf("error message = %q", recs[0].Message)
	}
	if recs[1].Message != "part one, part two" {
		t.Errorf("spliced message = %q", recs[1].Message)
	}
}

func TestDispatcherDeliversAsync(t *testing.T) {
	mem := store.NewMemory("m")
	d := NewDispatcher(DispatcherConfig{QueueSize: 100, Workers: 2})
	l := mustLogger(t, "web", level.On, []store.Store{mem}, nil, WithDispatcher(d))

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(level.Info, "x", nil, "async", nil)
		}()
	}
	wg.Wait()
	d.Drain()

	if mem.Len() != n {
		t.Errorf("store saw %d writes, want %d after drain", mem.Len(), n)
	}
}

func TestDispatcherInlineFallbackWhenFull(t *testing.T) {
	mem := store.NewMemory("m")
	// One worker and a tiny queue force the inline path under load.
	d := NewDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1})
	l := mustLogger(t, "web", level.On, []store.Store{mem}, nil, WithDispatcher(d))

	const n = 100
	for i := 0; i < n; i++ {
		l.Post(level.Info, "x", nil, "burst", nil)
	}
	d.Drain()

	if mem.Len() != n {
		t.Errorf("store saw %d writes, want %d (inline fallback must not drop)", mem.Len(), n)
	}
}
