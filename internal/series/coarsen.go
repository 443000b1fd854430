package series

import (
	"sort"
	"time"
)

// Direction selects which sample represents a bucket.
type Direction int

const (
	// First keeps the earliest sample per bucket, walking buckets ascending.
	First Direction = iota
	// Last keeps the latest sample per bucket, walking buckets descending.
	Last
)

// Missing is the output entry for a bucket without a sample when the caller
// asks for one entry per bucket.
const Missing = -1

// Coarsen aligns irregular timestamps onto a regular grid. grid holds n
// ascending boundary points defining n-1 half-open buckets [g[i], g[i+1]).
// The result holds, per bucket in traversal order, the original index of the
// bucket's representative sample. With missing=true every bucket produces
// exactly one entry (Missing for empty buckets); otherwise empty buckets are
// absent and the walk stops once samples run out.
func Coarsen(times []time.Time, grid []time.Time, dir Direction, missing bool) []int {
	if len(times) == 0 || len(grid) < 2 {
		return nil
	}

	type sample struct {
		t   time.Time
		idx int
	}
	samples := make([]sample, len(times))
	for i, t := range times {
		samples[i] = sample{t: t, idx: i}
	}
	if dir == First {
		sort.Slice(samples, func(i, j int) bool { return samples[i].t.Before(samples[j].t) })
	} else {
		sort.Slice(samples, func(i, j int) bool { return samples[j].t.Before(samples[i].t) })
	}

	buckets := len(grid) - 1
	out := make([]int, 0, buckets)
	pos := 0
	for b := 0; b < buckets; b++ {
		var lo, hi time.Time
		if dir == First {
			lo, hi = grid[b], grid[b+1]
		} else {
			lo, hi = grid[buckets-1-b], grid[buckets-b]
		}

		// Discard samples on the near side of the bucket.
		for pos < len(samples) && outsideNear(samples[pos].t, lo, hi, dir) {
			pos++
		}
		if pos >= len(samples) {
			if missing {
				out = append(out, Missing)
				continue
			}
			break
		}
		if outsideFar(samples[pos].t, lo, hi, dir) {
			// The front sample belongs to a later bucket; leave it queued.
			if missing {
				out = append(out, Missing)
			}
			continue
		}

		out = append(out, samples[pos].idx)
		pos++
		// Drop the bucket's remaining samples; only the representative stays.
		for pos < len(samples) && inBucket(samples[pos].t, lo, hi) {
			pos++
		}
	}
	return out
}

func inBucket(t, lo, hi time.Time) bool {
	return !t.Before(lo) && t.Before(hi)
}

// outsideNear reports a sample already passed by the traversal: before the
// bucket when ascending, at or past its upper bound when descending.
func outsideNear(t, lo, hi time.Time, dir Direction) bool {
	if dir == First {
		return t.Before(lo)
	}
	return !t.Before(hi)
}

// outsideFar reports a sample the traversal has not reached yet.
func outsideFar(t, lo, hi time.Time, dir Direction) bool {
	if dir == First {
		return !t.Before(hi)
	}
	return t.Before(lo)
}
