package metric

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/cascade/internal/template"
)

// Suite is a named collection of metrics evaluated together under a shared
// set of runtime attributes.
type Suite struct {
	Name string
	// Required lists the attribute keys a caller must supply to Run.
	Required []string
	// Header, when set, renders once per run with the supplied attributes.
	Header *template.Template
	// Defaults provides attribute values merged under the caller's.
	Defaults map[string]string
	Metrics  []*Metric
}

// Run validates the supplied attributes, optionally restricts to a subset
// of metric names, and evaluates each selected metric independently: one
// metric's failure never stops the others. The returned error joins every
// per-metric failure.
func (s *Suite) Run(now time.Time, attrs map[string]string, only ...string) error {
	merged := make(map[string]string, len(s.Defaults)+len(attrs))
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}

	var missing []string
	for _, key := range s.Required {
		if _, ok := merged[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("metric: suite %q missing required attributes: %s",
			s.Name, strings.Join(missing, ", "))
	}

	selected, err := s.selectMetrics(only)
	if err != nil {
		return err
	}

	if s.Header != nil {
		bindings := template.Bindings{"suite": s.Name}
		for k, v := range merged {
			bindings[k] = v
		}
		if header, err := s.Header.Render(bindings); err == nil {
			log.Printf("metric: %s", header)
		} else {
			log.Printf("metric: suite %q header render failed: %v", s.Name, err)
		}
	}

	var errs []error
	for _, m := range selected {
		if err := m.Evaluate(now, merged); err != nil {
			log.Printf("metric: suite %q: %v", s.Name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Suite) selectMetrics(only []string) ([]*Metric, error) {
	if len(only) == 0 {
		return s.Metrics, nil
	}
	byName := make(map[string]*Metric, len(s.Metrics))
	for _, m := range s.Metrics {
		byName[m.Name] = m
	}
	var (
		selected []*Metric
		unknown  []string
	)
	for _, name := range only {
		m, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, m)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("metric: suite %q has no metrics named: %s",
			s.Name, strings.Join(unknown, ", "))
	}
	return selected, nil
}
