package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/metric"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/series"
	"github.com/tinytelemetry/cascade/internal/store"
)

// failingSuite builds a suite whose single metric always reports: the data
// store holds one out-of-range sample.
func failingSuite(t *testing.T) (*metric.Suite, *store.Memory) {
	t.Helper()
	data := store.NewMemory("data")
	data.Write(&record.Record{
		Timestamp: time.Now().Add(-time.Minute),
		Level:     level.Info, Logger: "app", Topic: "t", Value: 100.0, Message: "s",
	})
	sink := store.NewMemory("alerts")
	l, err := logger.New("alerts", level.On, []store.Store{sink}, nil)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	check, err := series.NewRange(0, 5)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	suite := &metric.Suite{
		Name: "health",
		Metrics: []*metric.Metric{{
			Name:   "bound",
			Active: true,
			Input:  &metric.Input{Store: data, Topic: "t"},
			Check:  check,
			Output: &metric.Output{Logger: l, Level: level.Warn, Topic: "bound"},
		}},
	}
	return suite, sink
}

func TestRunsImmediatelyOnStart(t *testing.T) {
	suite, sink := failingSuite(t)
	s, err := New([]Job{{Suite: suite, Interval: time.Hour}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.Len() == 0 {
		t.Error("no report after Start; the first run must not wait an interval")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTickerKeepsRunning(t *testing.T) {
	suite, sink := failingSuite(t)
	s, err := New([]Job{{Suite: suite, Interval: 20 * time.Millisecond}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sink.Len() < 3 {
		t.Errorf("only %d runs observed, want repeated evaluation", sink.Len())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	suite, _ := failingSuite(t)
	s, err := New([]Job{{Suite: suite, Interval: time.Hour}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	ctx := context.Background()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewRejectsJobWithoutSuite(t *testing.T) {
	_, err := New([]Job{{Interval: time.Second}})
	if err == nil {
		t.Fatal("New accepted a job without a suite")
	}
	if !strings.Contains(err.Error(), "job 1") {
		t.Errorf("error %q does not identify the bad job", err)
	}
}
