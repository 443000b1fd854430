package series

import (
	"fmt"
	"math"
)

// Transform maps a value series to a derived series. Because some variants
// shrink the series, Apply also returns the half-open index range [lo, hi)
// of the original series that the output corresponds to, so reports can name
// the surviving timestamps.
type Transform interface {
	Apply(values []float64) (out []float64, lo, hi int, err error)
}

// Identity passes the series through unchanged.
type Identity struct{}

func (Identity) Apply(values []float64) ([]float64, int, int, error) {
	return values, 0, len(values), nil
}

// Standard is an affine transform with optional clamping:
// out = clamp(value*Scale + Shift, Floor, Ceiling).
type Standard struct {
	shift, scale   float64
	floor, ceiling float64
}

// NewStandard validates and builds a Standard transform. Pass -Inf/+Inf for
// an unbounded floor/ceiling.
func NewStandard(shift, scale, floor, ceiling float64) (*Standard, error) {
	if scale == 0 {
		return nil, fmt.Errorf("series: standard transform scale must be nonzero")
	}
	if floor > ceiling {
		return nil, fmt.Errorf("series: standard transform floor %v above ceiling %v", floor, ceiling)
	}
	return &Standard{shift: shift, scale: scale, floor: floor, ceiling: ceiling}, nil
}

func (t *Standard) Apply(values []float64) ([]float64, int, int, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		x := v*t.scale + t.shift
		x = math.Max(t.floor, math.Min(t.ceiling, x))
		out[i] = x
	}
	return out, 0, len(values), nil
}

// ZeroPolicy decides what a relative Difference does on a zero denominator.
type ZeroPolicy int

const (
	// FailOnZero aborts the evaluation with an error.
	FailOnZero ZeroPolicy = iota
	// PropagateOnZero emits the IEEE result (Inf or NaN); every Check
	// treats non-finite values as failing.
	PropagateOnZero
)

// Difference emits value[i+offset] - value[i]; with Relative it divides by
// the lagged value instead of subtracting absolutely.
type Difference struct {
	offset   int
	relative bool
	onZero   ZeroPolicy
}

// NewDifference validates and builds a Difference transform.
func NewDifference(offset int, relative bool, onZero ZeroPolicy) (*Difference, error) {
	if offset == 0 {
		return nil, fmt.Errorf("series: difference offset must be nonzero")
	}
	return &Difference{offset: offset, relative: relative, onZero: onZero}, nil
}

func (t *Difference) Apply(values []float64) ([]float64, int, int, error) {
	k := t.offset
	if k < 0 {
		k = -k
	}
	if len(values) <= k {
		return nil, 0, 0, nil
	}
	n := len(values) - k
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		cur, lag := values[i+k], values[i]
		if t.relative {
			if lag == 0 && t.onZero == FailOnZero {
				return nil, 0, 0, fmt.Errorf("series: relative difference with zero denominator at index %d", i)
			}
			out[i] = (cur - lag) / lag
		} else {
			out[i] = cur - lag
		}
	}
	if t.offset > 0 {
		// The later samples survive; out[i] describes original index i+k.
		return out, k, len(values), nil
	}
	return out, 0, n, nil
}

// Aggregator names a rolling-window reduction.
type Aggregator string

const (
	Mean Aggregator = "mean"
	Sum  Aggregator = "sum"
	Min  Aggregator = "min"
	Max  Aggregator = "max"
)

// Rolling applies a windowed aggregate. The whole pass is O(n): sum and mean
// keep a running accumulator; min and max keep the window in a ring buffer
// with the current extreme's slot, rescanning the ring only when the dropped
// slot held the extreme.
type Rolling struct {
	width int
	agg   Aggregator
}

// NewRolling validates and builds a Rolling transform.
func NewRolling(width int, agg Aggregator) (*Rolling, error) {
	if width <= 0 {
		return nil, fmt.Errorf("series: rolling width must be positive, got %d", width)
	}
	switch agg {
	case Mean, Sum, Min, Max:
	default:
		return nil, fmt.Errorf("series: unknown rolling aggregator %q", agg)
	}
	return &Rolling{width: width, agg: agg}, nil
}

func (t *Rolling) Apply(values []float64) ([]float64, int, int, error) {
	n := len(values)
	if n == 0 {
		return nil, 0, 0, nil
	}
	k := t.width
	if k > n {
		k = n
	}

	var out []float64
	switch t.agg {
	case Sum, Mean:
		out = rollingSum(values, k, t.agg == Mean)
	case Min:
		out = rollingExtreme(values, k, func(a, b float64) bool { return a <= b })
	case Max:
		out = rollingExtreme(values, k, func(a, b float64) bool { return a >= b })
	}
	// Output i describes original index k-1+i; range [k-1, n) survives.
	return out, k - 1, n, nil
}

func rollingSum(values []float64, k int, mean bool) []float64 {
	n := len(values)
	out := make([]float64, 0, n-k+1)
	acc := 0.0
	for i := 0; i < k; i++ {
		acc += values[i]
	}
	emit := func(sum float64) {
		if mean {
			out = append(out, sum/float64(k))
		} else {
			out = append(out, sum)
		}
	}
	emit(acc)
	for i := k; i < n; i++ {
		acc += values[i] - values[i-k]
		emit(acc)
	}
	return out
}

// rollingExtreme keeps the window in a ring buffer together with the current
// extreme and its slot. An incoming value that improves on (or ties) the
// extreme is adopted directly; a full O(k) rescan happens only when the
// dropped slot held the extreme.
func rollingExtreme(values []float64, k int, better func(a, b float64) bool) []float64 {
	n := len(values)
	ring := make([]float64, k)
	copy(ring, values[:k])

	extreme, slot := ring[0], 0
	for i := 1; i < k; i++ {
		if better(ring[i], extreme) {
			extreme, slot = ring[i], i
		}
	}

	out := make([]float64, 0, n-k+1)
	out = append(out, extreme)
	for i := k; i < n; i++ {
		drop := i % k
		ring[drop] = values[i]
		switch {
		case better(values[i], extreme):
			extreme, slot = values[i], drop
		case drop == slot:
			// The extreme just left the window; rescan the ring.
			extreme, slot = ring[0], 0
			for j := 1; j < k; j++ {
				if better(ring[j], extreme) {
					extreme, slot = ring[j], j
				}
			}
		}
		out = append(out, extreme)
	}
	return out
}

// General wraps an external series function.
type General struct {
	fn func(values []float64) ([]float64, int, int, error)
}

// NewGeneral builds a transform around fn.
func NewGeneral(fn func(values []float64) ([]float64, int, int, error)) (*General, error) {
	if fn == nil {
		return nil, fmt.Errorf("series: general transform needs a function")
	}
	return &General{fn: fn}, nil
}

func (t *General) Apply(values []float64) ([]float64, int, int, error) {
	return t.fn(values)
}
