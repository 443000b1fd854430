// Package series holds the numeric primitives of the metric pipeline:
// resampling irregular timestamps onto a regular grid, series transforms,
// and element-wise checks.
package series

import "time"

// Point is one timestamped sample.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ordered collection of points.
type Series []Point

// Values returns the sample values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Times returns the sample timestamps in order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Time
	}
	return out
}

// Grid returns the regular boundary points start, start+step, ... up to and
// including the first point at or past finish.
func Grid(start, finish time.Time, step time.Duration) []time.Time {
	if step <= 0 || finish.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start; ; t = t.Add(step) {
		out = append(out, t)
		if !t.Before(finish) {
			break
		}
	}
	return out
}
