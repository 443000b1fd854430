package series

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return epoch.Add(time.Duration(min) * time.Minute) }

func grid(mins ...int) []time.Time {
	out := make([]time.Time, len(mins))
	for i, m := range mins {
		out[i] = at(m)
	}
	return out
}

func TestCoarsenFirst(t *testing.T) {
	// Unordered on purpose; indices refer to this original order.
	times := []time.Time{at(12), at(3), at(7), at(1), at(8)}
	g := grid(0, 5, 10, 15)

	got := Coarsen(times, g, First, false)
	// Bucket [0,5): earliest is at(1) = index 3.
	// Bucket [5,10): earliest is at(7) = index 2.
	// Bucket [10,15): only at(12) = index 0.
	want := []int{3, 2, 0}
	assertIndices(t, got, want)
}

func TestCoarsenLast(t *testing.T) {
	times := []time.Time{at(12), at(3), at(7), at(1), at(8)}
	g := grid(0, 5, 10, 15)

	got := Coarsen(times, g, Last, false)
	// Buckets descending: [10,15) latest at(12)=0; [5,10) latest at(8)=4;
	// [0,5) latest at(3)=1.
	want := []int{0, 4, 1}
	assertIndices(t, got, want)
}

func TestCoarsenMissing(t *testing.T) {
	times := []time.Time{at(2), at(12)}
	g := grid(0, 5, 10, 15, 20)

	got := Coarsen(times, g, First, true)
	want := []int{0, Missing, 1, Missing}
	assertIndices(t, got, want)
}

func TestCoarsenHalfOpenBuckets(t *testing.T) {
	// A sample exactly on a boundary belongs to the bucket it opens.
	times := []time.Time{at(5)}
	g := grid(0, 5, 10)

	got := Coarsen(times, g, First, true)
	want := []int{Missing, 0}
	assertIndices(t, got, want)
}

func TestCoarsenEmptyInput(t *testing.T) {
	if got := Coarsen(nil, grid(0, 5), First, true); got != nil {
		t.Errorf("Coarsen(nil) = %v, want nil", got)
	}
}

func TestCoarsenStopsWhenExhausted(t *testing.T) {
	times := []time.Time{at(1)}
	g := grid(0, 5, 10, 15, 20, 25)

	got := Coarsen(times, g, First, false)
	want := []int{0}
	assertIndices(t, got, want)
}

func TestCoarsenOneEntryPerBucketWithMissing(t *testing.T) {
	times := []time.Time{at(1)}
	g := grid(0, 5, 10, 15)

	got := Coarsen(times, g, First, true)
	if len(got) != len(g)-1 {
		t.Fatalf("got %d entries, want one per bucket (%d)", len(got), len(g)-1)
	}
}

func assertIndices(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
