package namespace

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/metric"
	"github.com/tinytelemetry/cascade/internal/store"
)

// Namespace is one resolved configuration graph: its stores, its logger
// tree, the default logger, and its suites. The topology is frozen after
// construction; only the stores' own write/read operations mutate state.
type Namespace struct {
	path    string
	stores  map[string]store.Store
	loggers map[string]*logger.Logger
	def     *logger.Logger
	suites  map[string]*metric.Suite
}

// BuildOption adjusts namespace construction.
type BuildOption func(*builder)

// WithDispatcher attaches a shared fire-and-forget dispatch pool to every
// logger built in this namespace.
func WithDispatcher(d *logger.Dispatcher) BuildOption {
	return func(b *builder) { b.dispatcher = d }
}

type builder struct {
	dispatcher *logger.Dispatcher
}

// Build resolves cfg into a namespace using the given store registry (nil
// means the built-ins). On any error the partially built stores are closed
// and nothing is installed; the error lists every offending element.
func Build(cfg *Config, reg *store.Registry, opts ...BuildOption) (*Namespace, error) {
	if reg == nil {
		reg = store.Builtin()
	}
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	if len(cfg.Stores) == 0 {
		return nil, fmt.Errorf("namespace: config declares no stores")
	}
	if len(cfg.Loggers) == 0 {
		return nil, fmt.Errorf("namespace: config declares no loggers")
	}

	ns := &Namespace{
		path:    strings.Join(cfg.Path, "/"),
		stores:  make(map[string]store.Store, len(cfg.Stores)),
		loggers: make(map[string]*logger.Logger, len(cfg.Loggers)),
		suites:  make(map[string]*metric.Suite, len(cfg.Suites)),
	}

	var errs []error
	for _, name := range sortedKeys(cfg.Stores) {
		def := cfg.Stores[name]
		st, err := reg.Build(def.Type, name, def.Options)
		if err != nil {
			errs = append(errs, fmt.Errorf("namespace: store %q: %w", name, err))
			continue
		}
		ns.stores[name] = st
	}

	errs = append(errs, ns.resolveLoggers(cfg, &b)...)
	errs = append(errs, ns.pickDefault(cfg)...)
	errs = append(errs, ns.buildSuites(cfg)...)

	if len(errs) > 0 {
		ns.Close()
		return nil, errors.Join(errs...)
	}
	return ns, nil
}

// resolveLoggers builds the logger tree with repeated passes over a
// worklist: a definition becomes buildable once every child it names exists.
// A pass that builds nothing means the remainder is a cycle or references a
// name that never existed; every stuck definition is reported with exactly
// the children it is missing.
func (ns *Namespace) resolveLoggers(cfg *Config, b *builder) []error {
	var errs []error
	pending := make(map[string]LoggerDef, len(cfg.Loggers))
	for name, def := range cfg.Loggers {
		pending[name] = def
	}

	for len(pending) > 0 {
		progress := false
		for _, name := range sortedKeys(pending) {
			def := pending[name]
			if !ns.childrenReady(def.Children) {
				continue
			}
			l, err := ns.buildLogger(name, def, b)
			if err != nil {
				errs = append(errs, err)
			} else {
				ns.loggers[name] = l
			}
			delete(pending, name)
			progress = true
		}
		if !progress {
			break
		}
	}

	for _, name := range sortedKeys(pending) {
		var missing []string
		for _, child := range pending[name].Children {
			if _, ok := ns.loggers[child]; !ok {
				missing = append(missing, child)
			}
		}
		errs = append(errs, fmt.Errorf("namespace: logger %q unresolved, missing children: %s",
			name, strings.Join(missing, ", ")))
	}
	return errs
}

func (ns *Namespace) childrenReady(children []string) bool {
	for _, c := range children {
		if _, ok := ns.loggers[c]; !ok {
			return false
		}
	}
	return true
}

func (ns *Namespace) buildLogger(name string, def LoggerDef, b *builder) (*logger.Logger, error) {
	lvl, err := level.Parse(def.Level)
	if err != nil {
		return nil, fmt.Errorf("namespace: logger %q: %w", name, err)
	}
	var stores []store.Store
	var missing []string
	for _, sn := range def.Stores {
		st, ok := ns.stores[sn]
		if !ok {
			missing = append(missing, sn)
			continue
		}
		stores = append(stores, st)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("namespace: logger %q references unknown stores: %s",
			name, strings.Join(missing, ", "))
	}
	children := make([]*logger.Logger, 0, len(def.Children))
	for _, cn := range def.Children {
		children = append(children, ns.loggers[cn])
	}

	opts := []logger.Option{logger.WithInitialTags(def.Tags)}
	if b.dispatcher != nil {
		opts = append(opts, logger.WithDispatcher(b.dispatcher))
	}
	l, err := logger.New(name, lvl, stores, children, opts...)
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	return l, nil
}

// pickDefault selects the default logger. With more than one top-level
// logger an explicit default is required; the old "most recently built"
// rule made the choice depend on map iteration order.
func (ns *Namespace) pickDefault(cfg *Config) []error {
	if cfg.Default != "" {
		l, ok := ns.loggers[cfg.Default]
		if !ok {
			return []error{fmt.Errorf("namespace: default logger %q is not defined", cfg.Default)}
		}
		ns.def = l
		return nil
	}

	referenced := map[string]bool{}
	for _, def := range cfg.Loggers {
		for _, c := range def.Children {
			referenced[c] = true
		}
	}
	var top []string
	for name := range ns.loggers {
		if !referenced[name] {
			top = append(top, name)
		}
	}
	sort.Strings(top)
	switch len(top) {
	case 0:
		return []error{fmt.Errorf("namespace: no top-level logger to use as default")}
	case 1:
		ns.def = ns.loggers[top[0]]
		return nil
	}
	return []error{fmt.Errorf("namespace: %d top-level loggers (%s); an explicit default is required",
		len(top), strings.Join(top, ", "))}
}

// Path returns the namespace's scope path ("" for an unscoped namespace).
func (ns *Namespace) Path() string { return ns.path }

// Default returns the default logger.
func (ns *Namespace) Default() *logger.Logger { return ns.def }

// GetLogger returns the logger for name. A slash-separated name walks the
// tree: "server/requests" is the child "requests" of the logger "server".
func (ns *Namespace) GetLogger(name string) (*logger.Logger, error) {
	segments := strings.Split(name, "/")
	l, ok := ns.loggers[segments[0]]
	if !ok {
		return nil, fmt.Errorf("namespace: no logger %q", segments[0])
	}
	for _, seg := range segments[1:] {
		child := l.Child(seg)
		if child == nil {
			return nil, fmt.Errorf("namespace: logger %q has no child %q", l.Name(), seg)
		}
		l = child
	}
	return l, nil
}

// GetStore returns the store for name.
func (ns *Namespace) GetStore(name string) (store.Store, error) {
	st, ok := ns.stores[name]
	if !ok {
		return nil, fmt.Errorf("namespace: no store %q", name)
	}
	return st, nil
}

// GetSuite returns the suite for name.
func (ns *Namespace) GetSuite(name string) (*metric.Suite, error) {
	s, ok := ns.suites[name]
	if !ok {
		return nil, fmt.Errorf("namespace: no suite %q", name)
	}
	return s, nil
}

// Stores returns the store names, sorted.
func (ns *Namespace) Stores() []string {
	return sortedKeys(ns.stores)
}

// Suites returns the suite names, sorted.
func (ns *Namespace) Suites() []string {
	return sortedKeys(ns.suites)
}

// Close closes every store. Safe on a partially built namespace.
func (ns *Namespace) Close() error {
	var errs []error
	for _, name := range sortedKeys(ns.stores) {
		if err := ns.stores[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("namespace: close store %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
