// Package namespace resolves a declarative configuration document into a
// consistent graph of stores, loggers, and metric suites. Construction is
// all-or-nothing: every offending element is reported, and nothing is
// installed on failure.
package namespace

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/cascade/internal/store"
)

// Config is the declarative document a namespace is built from. Stores and
// loggers are mandatory; a document without them cannot dispatch anything.
type Config struct {
	// Path holds the namespace's scope segments, joined with "/" to key it
	// in a Set.
	Path    []string             `yaml:"namespace"`
	Stores  map[string]StoreDef  `yaml:"stores"`
	Loggers map[string]LoggerDef `yaml:"loggers"`
	// Default names the default logger. Required when more than one
	// top-level logger exists.
	Default string              `yaml:"default"`
	Suites  map[string]SuiteDef `yaml:"suites"`
}

// StoreDef is one store definition: a type tag plus whatever options that
// backend's factory understands.
type StoreDef struct {
	Type    string
	Options store.Options
}

// UnmarshalYAML pops the "type" key and leaves the rest as opaque options,
// so each backend keeps its own schema.
func (d *StoreDef) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t, _ := raw["type"].(string)
	if t == "" {
		return fmt.Errorf("namespace: store definition has no type")
	}
	delete(raw, "type")
	d.Type = t
	d.Options = store.Options(raw)
	return nil
}

// LoggerDef declares one node of the dispatch tree by name.
type LoggerDef struct {
	Level    string            `yaml:"level"`
	Stores   []string          `yaml:"stores"`
	Children []string          `yaml:"children"`
	Tags     map[string]string `yaml:"tags"`
}

// SuiteDef declares a metric suite. Attributes lists the keys a caller must
// supply at run time; Defaults fills in values the caller may override.
type SuiteDef struct {
	Attributes []string          `yaml:"attributes"`
	Defaults   map[string]string `yaml:"defaults"`
	Header     string            `yaml:"header"`
	Metrics    []MetricDef       `yaml:"metrics"`
}

// MetricDef declares one evaluation unit. Active defaults to true.
type MetricDef struct {
	Name       string            `yaml:"name"`
	Active     *bool             `yaml:"active"`
	Invert     bool              `yaml:"invert"`
	Attributes map[string]string `yaml:"attributes"`
	Input      InputDef          `yaml:"input"`
	Transform  *TransformDef     `yaml:"transform"`
	Check      *CheckDef         `yaml:"check"`
	Output     OutputDef         `yaml:"output"`
}

// InputDef declares where a metric's series comes from.
type InputDef struct {
	Store      string            `yaml:"store"`
	Topic      string            `yaml:"topic"`
	Period     Duration          `yaml:"period"`
	Frequency  Duration          `yaml:"frequency"`
	Sample     string            `yaml:"sample"`
	Attributes map[string]string `yaml:"attributes"`
}

// TransformDef declares the optional series transform. Fields beyond Type
// apply per variant; pointers distinguish "absent" from a literal zero.
type TransformDef struct {
	Type string `yaml:"type"`

	// standard
	Shift   float64  `yaml:"shift"`
	Scale   *float64 `yaml:"scale"`
	Floor   *float64 `yaml:"floor"`
	Ceiling *float64 `yaml:"ceiling"`

	// difference
	Offset   int    `yaml:"offset"`
	Relative bool   `yaml:"relative"`
	OnZero   string `yaml:"on_zero"`

	// rolling
	Width      int    `yaml:"width"`
	Aggregator string `yaml:"aggregator"`
}

// CheckDef declares the pass/fail predicate.
type CheckDef struct {
	Type string `yaml:"type"`

	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`

	Target    float64 `yaml:"target"`
	Tolerance float64 `yaml:"tolerance"`
}

// OutputDef declares where and how a metric reports.
type OutputDef struct {
	Logger    string   `yaml:"logger"`
	Level     string   `yaml:"level"`
	Topic     string   `yaml:"topic"`
	Format    string   `yaml:"format"`
	Period    Duration `yaml:"period"`
	Frequency Duration `yaml:"frequency"`
	Sample    string   `yaml:"sample"`
}

// Duration decodes either a Go duration string ("5m", "1h30m") or a bare
// number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("namespace: bad duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("namespace: duration must be a string or seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadYAML decodes a configuration document. Missing stores or loggers maps
// are load-time fatal.
func LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("namespace: decode config: %w", err)
	}
	if len(cfg.Stores) == 0 {
		return nil, fmt.Errorf("namespace: config declares no stores")
	}
	if len(cfg.Loggers) == 0 {
		return nil, fmt.Errorf("namespace: config declares no loggers")
	}
	return &cfg, nil
}

// LoadFile reads and decodes a YAML configuration document from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("namespace: read config %s: %w", path, err)
	}
	return LoadYAML(data)
}
