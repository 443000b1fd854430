package series

import (
	"fmt"
	"math"
)

// Check maps a value series to an element-wise pass/fail series of the same
// length. Non-finite values fail every check, including Tautology, so a
// propagated Inf/NaN from an upstream transform is always visible.
type Check interface {
	Apply(values []float64) []bool
}

// Tautology passes every finite value.
type Tautology struct{}

func (Tautology) Apply(values []float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = finite(v)
	}
	return out
}

// RangeCheck passes values within [Min, Max].
type RangeCheck struct {
	min, max float64
}

// NewRange validates and builds a RangeCheck.
func NewRange(min, max float64) (*RangeCheck, error) {
	if min > max {
		return nil, fmt.Errorf("series: range check min %v above max %v", min, max)
	}
	return &RangeCheck{min: min, max: max}, nil
}

func (c *RangeCheck) Apply(values []float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = finite(v) && v >= c.min && v <= c.max
	}
	return out
}

// ValueCheck passes values within Tolerance of Target.
type ValueCheck struct {
	target, tolerance float64
}

// NewValue validates and builds a ValueCheck.
func NewValue(target, tolerance float64) (*ValueCheck, error) {
	if tolerance < 0 {
		return nil, fmt.Errorf("series: value check tolerance must be non-negative, got %v", tolerance)
	}
	return &ValueCheck{target: target, tolerance: tolerance}, nil
}

func (c *ValueCheck) Apply(values []float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = finite(v) && math.Abs(v-c.target) <= c.tolerance
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
