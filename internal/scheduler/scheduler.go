// Package scheduler evaluates metric suites on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/cascade/internal/metric"
)

const defaultInterval = time.Minute

// Job is one scheduled suite: which suite, how often, and with which
// runtime attributes.
type Job struct {
	Suite      *metric.Suite
	Interval   time.Duration
	Attributes map[string]string
}

// Scheduler runs each job's suite on its own ticker. A failing run is
// logged and never stops the schedule.
type Scheduler struct {
	jobs []Job

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New validates the jobs and returns an idle scheduler. A job without a
// suite is a configuration error; a non-positive interval gets the default.
func New(jobs []Job) (*Scheduler, error) {
	var bad []string
	for i := range jobs {
		if jobs[i].Suite == nil {
			bad = append(bad, fmt.Sprintf("job %d", i+1))
			continue
		}
		if jobs[i].Interval <= 0 {
			jobs[i].Interval = defaultInterval
		}
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("scheduler: jobs without a suite: %s", strings.Join(bad, ", "))
	}
	return &Scheduler{
		jobs: jobs,
		done: make(chan struct{}),
	}, nil
}

// Start launches one evaluation loop per job. Each job runs once
// immediately, so a broken suite surfaces at startup rather than an
// interval later.
func (s *Scheduler) Start() {
	for i := range s.jobs {
		s.wg.Add(1)
		go s.loop(&s.jobs[i])
	}
}

func (s *Scheduler) loop(job *Job) {
	defer s.wg.Done()

	s.runOnce(job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(job)
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) runOnce(job *Job) {
	if err := job.Suite.Run(time.Now(), job.Attributes); err != nil {
		log.Printf("scheduler: suite %q run failed: %v", job.Suite.Name, err)
	}
}

// Stop halts every loop and waits for in-flight runs to finish. Safe to
// call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: shutdown: %w", ctx.Err())
	}
}
