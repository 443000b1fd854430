package record

import (
	"testing"
	"time"

	"github.com/tinytelemetry/cascade/internal/level"
)

func TestMergeTagsDoesNotMutate(t *testing.T) {
	base := map[string]string{"env": "prod", "region": "us-east"}
	extra := map[string]string{"region": "eu-west"}

	merged := MergeTags(base, extra)

	if merged["region"] != "eu-west" {
		t.Errorf("merged region = %q, want call-site value \"eu-west\"", merged["region"])
	}
	if merged["env"] != "prod" {
		t.Errorf("merged env = %q, want \"prod\"", merged["env"])
	}
	if base["region"] != "us-east" {
		t.Errorf("base mutated: region = %q", base["region"])
	}
}

func TestFilterMatch(t *testing.T) {
	now := time.Now()
	r := &Record{
		Timestamp: now,
		Level:     level.Warn,
		Logger:    "web",
		Topic:     "latency",
		Message:   "slow",
		Tags:      map[string]string{"host": "web1"},
	}

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty", Filter{}, true},
		{"level match", Filter{Level: level.Warn}, true},
		{"level mismatch", Filter{Level: level.Error}, false},
		{"topic match", Filter{Topic: "latency"}, true},
		{"tag mismatch", Filter{Tags: map[string]string{"host": "web2"}}, false},
		{"in range", Filter{Start: now.Add(-time.Minute), Finish: now.Add(time.Minute)}, true},
		{"before range", Filter{Start: now.Add(time.Minute)}, false},
	}
	for _, c := range cases {
		if got := c.f.Match(r); got != c.want {
			t.Errorf("%s: Match = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFilterValidate(t *testing.T) {
	now := time.Now()
	f := Filter{Start: now, Finish: now.Add(-time.Hour)}
	if err := f.Validate(); err == nil {
		t.Error("inverted range validated, want error")
	}
	if err := (Filter{}).Validate(); err != nil {
		t.Errorf("empty filter: %v", err)
	}
}
