package metric

import (
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/logger"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/series"
	"github.com/tinytelemetry/cascade/internal/store"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

// seedStore writes one numeric sample per value, one minute apart, ending
// just before testNow.
func seedStore(t *testing.T, topic string, values []float64) *store.Memory {
	t.Helper()
	m := store.NewMemory("data")
	for i, v := range values {
		err := m.Write(&record.Record{
			Timestamp: testNow.Add(-time.Duration(len(values)-i) * time.Minute),
			Level:     level.Info,
			Logger:    "app",
			Topic:     topic,
			Value:     v,
			Message:   "sample",
		})
		if err != nil {
			t.Fatalf("seed write: %v", err)
		}
	}
	return m
}

// reportSink collects what the output logger posts.
func reportSink(t *testing.T) (*store.Memory, *logger.Logger) {
	t.Helper()
	sink := store.NewMemory("reports")
	l, err := logger.New("alerts", level.On, []store.Store{sink}, nil)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return sink, l
}

func rangeCheck(t *testing.T, min, max float64) series.Check {
	t.Helper()
	c, err := series.NewRange(min, max)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return c
}

func TestEvaluateReportsRangeViolation(t *testing.T) {
	data := seedStore(t, "latency", []float64{1, 2, 3, 10})
	sink, alerts := reportSink(t)

	m := &Metric{
		Name:   "latency-bound",
		Active: true,
		Input:  &Input{Store: data, Topic: "latency"},
		Check:  rangeCheck(t, 0, 5),
		Output: &Output{Logger: alerts, Level: level.Warn, Topic: "latency-bound"},
	}

	if err := m.Evaluate(testNow, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	recs, _ := sink.Read(record.Filter{})
	if len(recs) != 1 {
		t.Fatalf("sink has %d reports, want 1", len(recs))
	}
	msg := recs[0].Message
	if !strings.Contains(msg, "10") {
		t.Errorf("report %q does not name the failing value 10", msg)
	}
	if !strings.Contains(msg, "position 4") {
		t.Errorf("report %q does not name the failing position", msg)
	}
	if recs[0].Level != level.Warn {
		t.Errorf("report level = %v, want Warn", recs[0].Level)
	}
}

func TestEvaluateSilentWhenAllPass(t *testing.T) {
	data := seedStore(t, "latency", []float64{1, 2, 3, 4})
	sink, alerts := reportSink(t)

	m := &Metric{
		Name:   "latency-bound",
		Active: true,
		Input:  &Input{Store: data, Topic: "latency"},
		Check:  rangeCheck(t, 0, 5),
		Output: &Output{Logger: alerts, Level: level.Warn, Topic: "latency-bound"},
	}
	if err := m.Evaluate(testNow, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sink.Len() != 0 {
		t.Errorf("sink has %d reports, want 0 when every check passes", sink.Len())
	}
}

func TestEvaluateInactiveSkips(t *testing.T) {
	data := seedStore(t, "latency", []float64{100})
	sink, alerts := reportSink(t)

	m := &Metric{
		Name:   "latency-bound",
		Active: false,
		Input:  &Input{Store: data, Topic: "latency"},
		Check:  rangeCheck(t, 0, 5),
		Output: &Output{Logger: alerts, Level: level.Warn},
	}
	if err := m.Evaluate(testNow, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sink.Len() != 0 {
		t.Errorf("inactive metric reported %d times", sink.Len())
	}
}

func TestEvaluateInvert(t *testing.T) {
	data := seedStore(t, "heartbeat", []float64{1, 1, 1})
	sink, alerts := reportSink(t)

	// Inverted range: values inside [0,5] become failures.
	m := &Metric{
		Name:   "inverted",
		Active: true,
		Invert: true,
		Input:  &Input{Store: data, Topic: "heartbeat"},
		Check:  rangeCheck(t, 0, 5),
		Output: &Output{Logger: alerts, Level: level.Error, Topic: "inverted"},
	}
	if err := m.Evaluate(testNow, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sink.Len() != 1 {
		t.Errorf("sink has %d reports, want 1 from inverted check", sink.Len())
	}
}

func TestEvaluateWithTransform(t *testing.T) {
	// Differences are {1,1,1,7}; range [0,5] fails on the jump.
	data := seedStore(t, "counter", []float64{1, 2, 3, 4, 11})
	sink, alerts := reportSink(t)

	diff, err := series.NewDifference(1, false, series.FailOnZero)
	if err != nil {
		t.Fatalf("NewDifference: %v", err)
	}
	m := &Metric{
		Name:      "growth",
		Active:    true,
		Input:     &Input{Store: data, Topic: "counter"},
		Transform: diff,
		Check:     rangeCheck(t, 0, 5),
		Output:    &Output{Logger: alerts, Level: level.Warn, Topic: "growth"},
	}
	if err := m.Evaluate(testNow, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	recs, _ := sink.Read(record.Filter{})
	if len(recs) != 1 {
		t.Fatalf("sink has %d reports, want 1", len(recs))
	}
	if !strings.Contains(recs[0].Message, "7") {
		t.Errorf("report %q does not name the failing difference 7", recs[0].Message)
	}
}

func TestRetrieveWithFrequency(t *testing.T) {
	data := store.NewMemory("data")
	// Two samples in the first minute bucket, one in the third.
	for _, d := range []struct {
		offset time.Duration
		v      float64
	}{
		{10 * time.Second, 1},
		{40 * time.Second, 2},
		{150 * time.Second, 3},
	} {
		data.Write(&record.Record{
			Timestamp: testNow.Add(-5*time.Minute + d.offset),
			Level:     level.Info, Logger: "app", Topic: "t", Value: d.v, Message: "s",
		})
	}

	in := &Input{Store: data, Topic: "t", Period: 5 * time.Minute, Frequency: time.Minute, Sample: series.First}
	rows, ser, err := in.Retrieve(testNow, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("resampled to %d rows, want 2 (one per occupied bucket)", len(rows))
	}
	if ser[0].Value != 1 || ser[1].Value != 3 {
		t.Errorf("resampled values = %v, want [1 3] (first sample per bucket)", ser.Values())
	}
}

func TestRetrieveEmptyIsNotError(t *testing.T) {
	data := store.NewMemory("data")
	in := &Input{Store: data, Topic: "nothing"}
	rows, ser, err := in.Retrieve(testNow, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if rows != nil || ser != nil {
		t.Errorf("Retrieve of empty store = (%v, %v), want empty", rows, ser)
	}
}

func TestRetrieveUnreadableStoreFails(t *testing.T) {
	hook, err := store.NewWebhook("hook", "http://localhost:0")
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	in := &Input{Store: hook, Topic: "t"}
	if _, _, err := in.Retrieve(testNow, nil); err == nil {
		t.Error("Retrieve from a write-only store succeeded, want error")
	}
}

func TestOutputNoDataMessage(t *testing.T) {
	sink, alerts := reportSink(t)
	out := &Output{Logger: alerts, Level: level.Warn, Topic: "t", Period: time.Minute}

	// The only row is far older than the output's period window.
	old := &record.Record{Timestamp: testNow.Add(-time.Hour), Level: level.Info, Logger: "app", Message: "s"}
	if err := out.Report("m", testNow, []*record.Record{old}, []float64{9}, []bool{false}); err != nil {
		t.Fatalf("Report: %v", err)
	}

	recs, _ := sink.Read(record.Filter{})
	if len(recs) != 1 {
		t.Fatalf("sink has %d reports, want 1", len(recs))
	}
	if !strings.Contains(recs[0].Message, "no data present") {
		t.Errorf("report %q, want the distinct no-data message", recs[0].Message)
	}
}

func TestSuiteRequiredAttributes(t *testing.T) {
	s := &Suite{Name: "nightly", Required: []string{"env", "region"}}

	err := s.Run(testNow, map[string]string{"env": "prod"})
	if err == nil {
		t.Fatal("Run succeeded without required attributes")
	}
	if !strings.Contains(err.Error(), "region") {
		t.Errorf("error %q does not name the missing attribute", err)
	}
	if strings.Contains(err.Error(), "env,") {
		t.Errorf("error %q names an attribute that was supplied", err)
	}

	if err := s.Run(testNow, map[string]string{"env": "prod", "region": "us-east"}); err != nil {
		t.Errorf("Run with all attributes: %v", err)
	}
}

func TestSuiteDefaultsSatisfyRequired(t *testing.T) {
	s := &Suite{
		Name:     "nightly",
		Required: []string{"env"},
		Defaults: map[string]string{"env": "prod"},
	}
	if err := s.Run(testNow, nil); err != nil {
		t.Errorf("Run with defaulted attribute: %v", err)
	}
}

func TestSuiteIsolatesMetricFailures(t *testing.T) {
	good := seedStore(t, "ok", []float64{100})
	sink, alerts := reportSink(t)

	hook, err := store.NewWebhook("hook", "http://localhost:0")
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}

	broken := &Metric{
		Name:   "broken",
		Active: true,
		Input:  &Input{Store: hook, Topic: "x"}, // read-unsupported backend
		Check:  rangeCheck(t, 0, 1),
		Output: &Output{Logger: alerts, Level: level.Warn},
	}
	healthy := &Metric{
		Name:   "healthy",
		Active: true,
		Input:  &Input{Store: good, Topic: "ok"},
		Check:  rangeCheck(t, 0, 5), // 100 fails
		Output: &Output{Logger: alerts, Level: level.Warn, Topic: "healthy"},
	}

	s := &Suite{Name: "mixed", Metrics: []*Metric{broken, healthy}}
	if err := s.Run(testNow, nil); err == nil {
		t.Error("Run returned nil, want the broken metric's error")
	}
	if sink.Len() != 1 {
		t.Errorf("sink has %d reports, want 1; the healthy metric must still run", sink.Len())
	}
}

func TestSuiteSubsetSelection(t *testing.T) {
	data := seedStore(t, "t", []float64{100})
	sink, alerts := reportSink(t)

	mk := func(name string) *Metric {
		return &Metric{
			Name:   name,
			Active: true,
			Input:  &Input{Store: data, Topic: "t"},
			Check:  rangeCheck(t, 0, 1),
			Output: &Output{Logger: alerts, Level: level.Warn, Topic: name},
		}
	}
	s := &Suite{Name: "pair", Metrics: []*Metric{mk("a"), mk("b")}}

	if err := s.Run(testNow, nil, "b"); err != nil {
		t.Fatalf("Run subset: %v", err)
	}
	recs, _ := sink.Read(record.Filter{})
	if len(recs) != 1 || recs[0].Topic != "b" {
		t.Errorf("subset run produced %v, want one report from \"b\"", recs)
	}

	if err := s.Run(testNow, nil, "zzz"); err == nil {
		t.Error("Run with unknown metric name succeeded")
	}
}
