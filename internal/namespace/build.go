package namespace

import (
	"fmt"
	"math"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/metric"
	"github.com/tinytelemetry/cascade/internal/series"
	"github.com/tinytelemetry/cascade/internal/template"
)

func (ns *Namespace) buildSuites(cfg *Config) []error {
	var errs []error
	for _, name := range sortedKeys(cfg.Suites) {
		s, err := ns.buildSuite(name, cfg.Suites[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ns.suites[name] = s
	}
	return errs
}

func (ns *Namespace) buildSuite(name string, def SuiteDef) (*metric.Suite, error) {
	s := &metric.Suite{
		Name:     name,
		Required: def.Attributes,
		Defaults: def.Defaults,
	}
	if def.Header != "" {
		tmpl, err := template.Compile(def.Header)
		if err != nil {
			return nil, fmt.Errorf("namespace: suite %q header: %w", name, err)
		}
		s.Header = tmpl
	}
	for i, md := range def.Metrics {
		if md.Name == "" {
			return nil, fmt.Errorf("namespace: suite %q metric %d has no name", name, i+1)
		}
		m, err := ns.buildMetric(md)
		if err != nil {
			return nil, fmt.Errorf("namespace: suite %q: %w", name, err)
		}
		s.Metrics = append(s.Metrics, m)
	}
	return s, nil
}

func (ns *Namespace) buildMetric(def MetricDef) (*metric.Metric, error) {
	active := true
	if def.Active != nil {
		active = *def.Active
	}
	m := &metric.Metric{
		Name:       def.Name,
		Attributes: def.Attributes,
		Active:     active,
		Invert:     def.Invert,
	}

	in, err := ns.buildInput(def.Name, def.Input)
	if err != nil {
		return nil, err
	}
	m.Input = in

	if def.Transform != nil {
		tr, err := buildTransform(def.Name, *def.Transform)
		if err != nil {
			return nil, err
		}
		m.Transform = tr
	}

	check, err := buildCheck(def.Name, def.Check)
	if err != nil {
		return nil, err
	}
	m.Check = check

	out, err := ns.buildOutput(def.Name, def.Output)
	if err != nil {
		return nil, err
	}
	m.Output = out
	return m, nil
}

func (ns *Namespace) buildInput(name string, def InputDef) (*metric.Input, error) {
	st, ok := ns.stores[def.Store]
	if !ok {
		return nil, fmt.Errorf("metric %q input references unknown store %q", name, def.Store)
	}
	dir, err := parseDirection(def.Sample)
	if err != nil {
		return nil, fmt.Errorf("metric %q input: %w", name, err)
	}
	return &metric.Input{
		Store:      st,
		Topic:      def.Topic,
		Period:     def.Period.Std(),
		Frequency:  def.Frequency.Std(),
		Sample:     dir,
		Attributes: def.Attributes,
	}, nil
}

func (ns *Namespace) buildOutput(name string, def OutputDef) (*metric.Output, error) {
	l := ns.def
	if def.Logger != "" {
		var err error
		l, err = ns.GetLogger(def.Logger)
		if err != nil {
			return nil, fmt.Errorf("metric %q output: %w", name, err)
		}
	}
	lvl := level.Warn
	if def.Level != "" {
		var err error
		lvl, err = level.Parse(def.Level)
		if err != nil {
			return nil, fmt.Errorf("metric %q output: %w", name, err)
		}
	}
	dir, err := parseDirection(def.Sample)
	if err != nil {
		return nil, fmt.Errorf("metric %q output: %w", name, err)
	}
	out := &metric.Output{
		Logger:    l,
		Level:     lvl,
		Topic:     def.Topic,
		Period:    def.Period.Std(),
		Frequency: def.Frequency.Std(),
		Sample:    dir,
	}
	if def.Format != "" {
		tmpl, err := template.Compile(def.Format)
		if err != nil {
			return nil, fmt.Errorf("metric %q output format: %w", name, err)
		}
		out.Template = tmpl
	}
	return out, nil
}

func buildTransform(name string, def TransformDef) (series.Transform, error) {
	switch def.Type {
	case "identity", "":
		return series.Identity{}, nil
	case "standard":
		scale := 1.0
		if def.Scale != nil {
			scale = *def.Scale
		}
		floor := math.Inf(-1)
		if def.Floor != nil {
			floor = *def.Floor
		}
		ceiling := math.Inf(1)
		if def.Ceiling != nil {
			ceiling = *def.Ceiling
		}
		tr, err := series.NewStandard(def.Shift, scale, floor, ceiling)
		if err != nil {
			return nil, fmt.Errorf("metric %q transform: %w", name, err)
		}
		return tr, nil
	case "difference":
		onZero, err := parseZeroPolicy(def.OnZero)
		if err != nil {
			return nil, fmt.Errorf("metric %q transform: %w", name, err)
		}
		offset := def.Offset
		if offset == 0 {
			offset = 1
		}
		tr, err := series.NewDifference(offset, def.Relative, onZero)
		if err != nil {
			return nil, fmt.Errorf("metric %q transform: %w", name, err)
		}
		return tr, nil
	case "rolling":
		tr, err := series.NewRolling(def.Width, series.Aggregator(def.Aggregator))
		if err != nil {
			return nil, fmt.Errorf("metric %q transform: %w", name, err)
		}
		return tr, nil
	}
	return nil, fmt.Errorf("metric %q transform: unknown type %q", name, def.Type)
}

func buildCheck(name string, def *CheckDef) (series.Check, error) {
	if def == nil {
		return series.Tautology{}, nil
	}
	switch def.Type {
	case "tautology", "":
		return series.Tautology{}, nil
	case "range":
		c, err := series.NewRange(def.Min, def.Max)
		if err != nil {
			return nil, fmt.Errorf("metric %q check: %w", name, err)
		}
		return c, nil
	case "value":
		c, err := series.NewValue(def.Target, def.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("metric %q check: %w", name, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("metric %q check: unknown type %q", name, def.Type)
}

func parseDirection(s string) (series.Direction, error) {
	switch s {
	case "", "first":
		return series.First, nil
	case "last":
		return series.Last, nil
	}
	return series.First, fmt.Errorf("unknown sample direction %q", s)
}

func parseZeroPolicy(s string) (series.ZeroPolicy, error) {
	switch s {
	case "", "fail":
		return series.FailOnZero, nil
	case "propagate":
		return series.PropagateOnZero, nil
	}
	return series.FailOnZero, fmt.Errorf("unknown zero-denominator policy %q", s)
}
