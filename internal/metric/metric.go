package metric

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/series"
)

// Metric is one Input → Transform → Check → Output evaluation unit.
type Metric struct {
	Name       string
	Attributes map[string]string
	Active     bool
	Invert     bool
	Input      *Input
	Transform  series.Transform
	Check      series.Check
	Output     *Output
}

// Evaluate retrieves the metric's series as of now, derives and checks it,
// and reports through the output only when something fails. An inactive
// metric is a silent no-op. Retrieval and transform errors fail this
// evaluation only.
func (m *Metric) Evaluate(now time.Time, attrs map[string]string) error {
	if !m.Active {
		return nil
	}
	if m.Input == nil || m.Check == nil || m.Output == nil {
		return fmt.Errorf("metric: %q is missing input, check, or output", m.Name)
	}

	merged := record.MergeTags(m.Attributes, attrs)
	rows, ser, err := m.Input.Retrieve(now, merged)
	if err != nil {
		return fmt.Errorf("metric: %q: %w", m.Name, err)
	}
	if len(rows) == 0 {
		// Already reported by Retrieve; nothing to judge.
		return nil
	}

	transform := m.Transform
	if transform == nil {
		transform = series.Identity{}
	}
	values, lo, hi, err := transform.Apply(ser.Values())
	if err != nil {
		return fmt.Errorf("metric: %q transform: %w", m.Name, err)
	}
	if len(values) == 0 {
		return nil
	}
	survivors := rows[lo:hi]

	checks := m.Check.Apply(values)
	if m.Invert {
		for i := range checks {
			checks[i] = !checks[i]
		}
	}

	allPass := true
	for _, ok := range checks {
		if !ok {
			allPass = false
			break
		}
	}
	if allPass {
		return nil
	}
	return m.Output.Report(m.Name, now, survivors, values, checks)
}
