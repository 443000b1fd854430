package duck

import (
	"log"
	"sync"
	"time"
)

// RetentionCleaner periodically deletes records older than the configured
// retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner starts a cleaner for store. Returns nil when days is
// 0 or negative (retention disabled).
func NewRetentionCleaner(store *Store, days int) *RetentionCleaner {
	if days <= 0 {
		return nil
	}
	rc := &RetentionCleaner{store: store, retentionDays: days, done: make(chan struct{})}

	// Startup cleanup catches up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()
	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -rc.retentionDays)
	n, err := rc.store.DeleteBefore(cutoff)
	if err != nil {
		log.Printf("duck: retention cleanup: %v", err)
		return
	}
	if n > 0 {
		log.Printf("duck: retention deleted %d records older than %d days", n, rc.retentionDays)
	}
}

// Stop halts the cleaner and waits for the loop to exit.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
