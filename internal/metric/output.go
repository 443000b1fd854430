package metric

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/series"
	"github.com/tinytelemetry/cascade/internal/template"
)

// DefaultReportFormat is the report message rendered when a metric's
// definition does not supply its own.
const DefaultReportFormat = "metric $name: $failed of $count checks failed: $failures"

// NoDataMessage is reported when the output's own filtering leaves nothing
// to judge; silence would hide a dead input.
const NoDataMessage = "metric $name: no data present"

// Output describes where and how a metric reports failures. Its period,
// frequency, and sample settings re-filter the already-retrieved rows
// independently of the input's filtering, since the report may frame a
// different window than the retrieval.
type Output struct {
	Logger    *logger.Logger
	Level     level.Level
	Topic     string
	Template  *template.Template
	Period    time.Duration
	Frequency time.Duration
	Sample    series.Direction
}

// Report re-filters the evaluated rows, and posts a rendered report unless
// every surviving check passes. rows, values, and checks are parallel.
func (o *Output) Report(name string, now time.Time, rows []*record.Record, values []float64, checks []bool) error {
	if o.Logger == nil {
		return fmt.Errorf("metric: output for %q has no logger", name)
	}
	rows, values, checks = o.refilter(now, rows, values, checks)

	bindings := template.Bindings{
		"name":  name,
		"topic": o.Topic,
		"level": o.Level.String(),
	}

	if len(checks) == 0 {
		tmpl := template.MustCompile(NoDataMessage)
		msg, err := tmpl.Render(bindings)
		if err != nil {
			return fmt.Errorf("metric: render no-data report for %q: %w", name, err)
		}
		o.Logger.Post(o.Level, o.Topic, nil, msg, nil)
		return nil
	}

	failed := 0
	var failures []string
	for i, ok := range checks {
		if ok {
			continue
		}
		failed++
		if i < len(rows) && rows[i] != nil {
			failures = append(failures, fmt.Sprintf("%v at %s (position %d)",
				values[i], rows[i].Timestamp.Format(time.RFC3339), i+1))
		} else {
			failures = append(failures, fmt.Sprintf("%v (position %d)", values[i], i+1))
		}
	}
	if failed == 0 {
		return nil
	}

	bindings["count"] = len(checks)
	bindings["failed"] = failed
	bindings["failures"] = strings.Join(failures, "; ")
	bindings["values"] = fmt.Sprint(values)

	tmpl := o.Template
	if tmpl == nil {
		tmpl = template.MustCompile(DefaultReportFormat)
	}
	msg, err := tmpl.Render(bindings)
	if err != nil {
		return fmt.Errorf("metric: render report for %q: %w", name, err)
	}
	o.Logger.Post(o.Level, o.Topic, values, msg, nil)
	return nil
}

// refilter applies the output's own period and frequency to the evaluated
// rows, keeping the three slices parallel.
func (o *Output) refilter(now time.Time, rows []*record.Record, values []float64, checks []bool) ([]*record.Record, []float64, []bool) {
	if o.Period > 0 {
		cut := now.Add(-o.Period)
		keep := rows[:0:0]
		var kv []float64
		var kc []bool
		for i, r := range rows {
			if r == nil || r.Timestamp.Before(cut) {
				continue
			}
			keep = append(keep, r)
			kv = append(kv, values[i])
			kc = append(kc, checks[i])
		}
		rows, values, checks = keep, kv, kc
	}
	if o.Frequency > 0 && len(rows) > 0 {
		times := make([]time.Time, len(rows))
		for i, r := range rows {
			times[i] = r.Timestamp
		}
		grid := series.Grid(times[0], now, o.Frequency)
		idx := series.Coarsen(times, grid, o.Sample, false)
		if o.Sample == series.Last {
			for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
				idx[i], idx[j] = idx[j], idx[i]
			}
		}
		keep := make([]*record.Record, 0, len(idx))
		kv := make([]float64, 0, len(idx))
		kc := make([]bool, 0, len(idx))
		for _, i := range idx {
			keep = append(keep, rows[i])
			kv = append(kv, values[i])
			kc = append(kc, checks[i])
		}
		rows, values, checks = keep, kv, kc
	}
	return rows, values, checks
}
