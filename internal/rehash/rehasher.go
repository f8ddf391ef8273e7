// Package rehash implements the background rehasher thread from spec.md
// §4.6: a single goroutine that periodically resizes and incrementally
// migrates shard hash tables, and opportunistically sweeps expired keys.
// Grounded on the teacher's scm.Scheduler ticking pattern
// (scm/scheduler.go) generalized from a one-shot task heap to a fixed
// 2s-period sweep over every shard.
package rehash

import (
	"time"

	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
)

const (
	tickPeriod          = 2 * time.Second
	rehashBudgetPerPass = time.Millisecond
	expireSweepPerShard = 20
)

// Rehasher owns the periodic resize/migrate/expire sweep. It never holds
// more than one shard's write lock at a time (spec.md §5: "no handler
// may block on I/O while holding a shard lock" — the rehasher never
// performs I/O at all, only in-memory table work).
type Rehasher struct {
	store *store.Store
	stop  chan struct{}
	done  chan struct{}
	log   zerolog.Logger
}

func New(s *store.Store, log zerolog.Logger) *Rehasher {
	return &Rehasher{store: s, stop: make(chan struct{}), done: make(chan struct{}), log: log}
}

// Stop signals the rehasher to exit and blocks until it has.
func (r *Rehasher) Stop() {
	close(r.stop)
	<-r.done
}

// Run ticks every 2s, sweeping every shard for resize and migration work
// plus a bounded opportunistic expiry pass, until Stop is called.
func (r *Rehasher) Run() {
	defer close(r.done)
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Rehasher) sweep() {
	now := store.Now()
	for _, shard := range r.store.AllShards() {
		r.sweepShard(shard, now)
		select {
		case <-r.stop:
			return
		default:
		}
	}
}

func (r *Rehasher) sweepShard(shard *store.Shard, now time.Time) {
	shard.Lock()
	defer shard.Unlock()
	if shard.NeedsResize() {
		shard.TriggerResize()
	}
	if shard.IsRehashing() {
		shard.RehashMillis(int(rehashBudgetPerPass / time.Millisecond))
	}
	if expired := shard.ExpireNearest(now, expireSweepPerShard); expired > 0 {
		r.log.Debug().Int("expired", expired).Msg("rehasher swept expired keys")
	}
}
