// Package metric implements the evaluation pipeline: Input reads a series
// back out of a store, a transform derives a new series, a check grades it,
// and Output reports failures through a logger.
package metric

import (
	"fmt"
	"log"
	"time"

	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/series"
	"github.com/tinytelemetry/cascade/internal/store"
)

// Input describes how a metric retrieves its series from a store.
type Input struct {
	Store      store.Store
	Topic      string
	Period     time.Duration // lookback; 0 means unbounded
	Frequency  time.Duration // resampling grid step; 0 means raw samples
	Sample     series.Direction
	Attributes map[string]string // extra tag filters
}

// Retrieve reads the records in [cutoff-Period, cutoff], keeps those with a
// numeric value, and resamples them onto the cutoff-aligned grid when a
// frequency is set. The returned records and series are parallel. An empty
// result is a reported condition, not an error.
func (in *Input) Retrieve(cutoff time.Time, extra map[string]string) ([]*record.Record, series.Series, error) {
	if in.Store == nil {
		return nil, nil, fmt.Errorf("metric: input has no store")
	}
	finish := cutoff
	if finish.IsZero() {
		finish = time.Now()
	}
	var start time.Time
	if in.Period > 0 {
		start = finish.Add(-in.Period)
	}

	recs, err := in.Store.Read(record.Filter{
		Topic:  in.Topic,
		Tags:   record.MergeTags(in.Attributes, extra),
		Start:  start,
		Finish: finish,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("metric: retrieve from %q: %w", in.Store.Name(), err)
	}

	rows, ser := numericRows(recs)
	if len(rows) == 0 {
		log.Printf("metric: store %q returned no samples for topic %q", in.Store.Name(), in.Topic)
		return nil, nil, nil
	}

	if in.Frequency > 0 {
		gridStart := start
		if gridStart.IsZero() {
			gridStart = earliest(ser)
		}
		rows, ser = resample(rows, ser, gridStart, finish, in.Frequency, in.Sample)
	}
	return rows, ser, nil
}

// numericRows keeps the records whose value coerces to float64, in order.
func numericRows(recs []*record.Record) ([]*record.Record, series.Series) {
	var (
		rows []*record.Record
		ser  series.Series
	)
	for _, r := range recs {
		v, ok := numeric(r.Value)
		if !ok {
			continue
		}
		rows = append(rows, r)
		ser = append(ser, series.Point{Time: r.Timestamp, Value: v})
	}
	return rows, ser
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func earliest(ser series.Series) time.Time {
	min := ser[0].Time
	for _, p := range ser[1:] {
		if p.Time.Before(min) {
			min = p.Time
		}
	}
	return min
}

// resample coarsens rows onto the regular grid [start, finish] with the
// given step, keeping one representative per bucket.
func resample(rows []*record.Record, ser series.Series, start, finish time.Time, step time.Duration, dir series.Direction) ([]*record.Record, series.Series) {
	grid := series.Grid(start, finish, step)
	idx := series.Coarsen(ser.Times(), grid, dir, false)
	if dir == series.Last {
		// Coarsen walks buckets descending for Last; transforms want the
		// series back in chronological order.
		for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}

	outRows := make([]*record.Record, 0, len(idx))
	outSer := make(series.Series, 0, len(idx))
	for _, i := range idx {
		outRows = append(outRows, rows[i])
		outSer = append(outSer, ser[i])
	}
	return outRows, outSer
}
