package namespace

import (
	"fmt"
	"log"
	"sync"
)

// Set is a path-keyed collection of namespaces, letting independent
// subsystems configure disjoint logger trees without collision. It is a
// constructed object, not ambient global state.
type Set struct {
	mu     sync.Mutex
	spaces map[string]*Namespace
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{spaces: make(map[string]*Namespace)}
}

// Install adds ns under its path, overwriting an existing namespace at the
// same path with a warning.
func (s *Set) Install(ns *Namespace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.spaces[ns.Path()]; exists {
		log.Printf("namespace: overwriting namespace at path %q", ns.Path())
	}
	s.spaces[ns.Path()] = ns
}

// Get returns the namespace at path.
func (s *Set) Get(path string) (*Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.spaces[path]
	if !ok {
		return nil, fmt.Errorf("namespace: no namespace at path %q", path)
	}
	return ns, nil
}

// Remove uninstalls and closes the namespace at path. Removing an absent
// path is a no-op.
func (s *Set) Remove(path string) error {
	s.mu.Lock()
	ns, ok := s.spaces[path]
	delete(s.spaces, path)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return ns.Close()
}

// Paths returns the installed namespace paths, sorted.
func (s *Set) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.spaces)
}
