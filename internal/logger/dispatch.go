package logger

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

// DefaultQueueSize bounds in-flight fire-and-forget writes.
const DefaultQueueSize = 10_000

const defaultWorkers = 4

type writeJob struct {
	st  store.Store
	rec *record.Record
}

// Dispatcher delivers store writes off the caller's goroutine. Enqueue never
// blocks: when the queue is full the write happens inline as a safety valve,
// with a throttled warning, so sustained backend failure cannot grow the
// queue without bound.
type Dispatcher struct {
	jobs chan writeJob
	wg   sync.WaitGroup

	closeOnce sync.Once

	// backpressureCount tracks inline writes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix timestamp of last backpressure log
}

// DispatcherConfig holds tunable dispatcher parameters.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
}

// NewDispatcher starts the worker pool.
func NewDispatcher(conf ...DispatcherConfig) *Dispatcher {
	queueSize := DefaultQueueSize
	workers := defaultWorkers
	if len(conf) > 0 {
		if conf[0].QueueSize > 0 {
			queueSize = conf[0].QueueSize
		}
		if conf[0].Workers > 0 {
			workers = conf[0].Workers
		}
	}

	d := &Dispatcher{jobs: make(chan writeJob, queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		writeIsolated(job.st, job.rec)
	}
}

// Enqueue hands one store write to the pool without blocking the caller.
func (d *Dispatcher) Enqueue(st store.Store, rec *record.Record) {
	select {
	case d.jobs <- writeJob{st: st, rec: rec}:
	default:
		d.logBackpressure()
		writeIsolated(st, rec)
	}
}

func (d *Dispatcher) logBackpressure() {
	count := d.backpressureCount.Add(1)
	now := nowUnix()
	last := d.lastBPLog.Load()
	if now-last >= 10 && d.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("logger: backpressure, %d inline writes (dispatch queue full)", count)
	}
}

// Drain stops the workers after finishing every queued write.
func (d *Dispatcher) Drain() {
	d.closeOnce.Do(func() { close(d.jobs) })
	d.wg.Wait()
}

// writeIsolated performs one store write, reporting failure on the
// diagnostic channel. Errors never reach the posting caller.
func writeIsolated(st store.Store, rec *record.Record) {
	if err := st.Write(rec); err != nil {
		log.Printf("logger: store %q write failed: %v", st.Name(), err)
	}
}
