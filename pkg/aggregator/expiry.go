package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run sweeps expired and stale tasks until ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	log.Printf("[Aggregator] Expiry sweeper started (interval %s, retention %s)", a.sweepInterval, a.retention)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Aggregator] Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			a.sweep()
		}
	}
}

// sweep expires open tasks past their deadline and prunes tasks that have
// been closed for longer than the retention period.
func (a *Aggregator) sweep() {
	now := a.now()

	a.mu.RLock()
	states := make([]*taskState, 0, len(a.tasks))
	for _, s := range a.tasks {
		states = append(states, s)
	}
	a.mu.RUnlock()

	var stale []uint32
	for _, s := range states {
		s.mu.Lock()
		if s.expireIfDue(now) {
			a.onExpired(s)
		}
		if !s.isOpen() && now.Sub(s.closedAt) >= a.retention {
			stale = append(stale, s.task.Index)
		}
		s.mu.Unlock()
	}
	if len(stale) == 0 {
		return
	}

	a.mu.Lock()
	for _, idx := range stale {
		delete(a.tasks, idx)
	}
	a.mu.Unlock()
	log.Debug().Int("pruned", len(stale)).Msg("[Aggregator] Pruned closed tasks")
}
