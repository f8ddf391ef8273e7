// Package resolver implements the asynchronous miss-resolution
// subsystem from spec.md §4.7: a fixed pool of resolver goroutines, each
// owning a bounded queue, sharing a 65,536-bit single-flight filter, a
// document-store driver handle, and a presence-check client handle.
// Grounded in _examples/original_source/src/asynctask.cpp (ASyncTask),
// restated with channels standing in for the RingQue + pthread
// condition variable the original uses.
package resolver

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/launix-de/icache/internal/docstore"
	"github.com/launix-de/icache/internal/presence"
	"github.com/launix-de/icache/internal/projection"
	"github.com/launix-de/icache/internal/slot"
	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
)

// Errors PushTask can return, spec.md §4.7 Submission.
var (
	ErrNoResolvers         = errors.New("resolver: no resolvers configured")
	ErrDuplicateSuppressed = errors.New("resolver: duplicate suppressed")
	ErrQueueFull           = errors.New("resolver: queue full")
)

// MissTask is the unit of work a resolver goroutine executes, the Go
// analogue of the original's MissTask{ms, key}.
type MissTask struct {
	Ms  int64
	Key string
}

// resolverWorker is one resolver goroutine and its bounded queue.
type resolverWorker struct {
	queue chan MissTask
	stop  chan struct{}
}

// Pool is the full async miss-resolution subsystem. It implements
// command.BackfillPusher so command handlers can depend on the
// interface without importing this package.
type Pool struct {
	workers     []*resolverWorker
	filter      filter
	store       *store.Store
	docs        docstore.Driver
	presence    presence.Client
	compression store.CompressionPolicy
	log         zerolog.Logger
	done        chan struct{}
	wg          chan struct{} // unused; Run closes done once all workers have exited
}

const (
	installTTL     = 7 * 24 * time.Hour
	resolverPeriod = 10 * time.Millisecond
)

// New builds a pool of n resolvers, each with a queue of queueSize.
func New(n, queueSize int, st *store.Store, docs docstore.Driver, pres presence.Client, compression store.CompressionPolicy, log zerolog.Logger) *Pool {
	p := &Pool{
		store:       st,
		docs:        docs,
		presence:    pres,
		compression: compression,
		log:         log,
		done:        make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, &resolverWorker{
			queue: make(chan MissTask, queueSize),
			stop:  make(chan struct{}),
		})
	}
	return p
}

// Run starts every resolver goroutine and blocks until Stop completes
// them all.
func (p *Pool) Run() {
	finished := make(chan struct{}, len(p.workers))
	for _, w := range p.workers {
		go func(w *resolverWorker) {
			p.runWorker(w)
			finished <- struct{}{}
		}(w)
	}
	for range p.workers {
		<-finished
	}
	close(p.done)
}

// Stop signals every resolver to exit after draining its current queue;
// pending tasks beyond that are dropped and their filter bits released,
// per spec.md §5: "pending resolver tasks are dropped (their filter bits
// are reset during shutdown)".
func (p *Pool) Stop() {
	for _, w := range p.workers {
		close(w.stop)
	}
	<-p.done
	for _, w := range p.workers {
		for {
			select {
			case task := <-w.queue:
				p.filter.clear(slot.CRC16([]byte(task.Key)))
			default:
				return
			}
		}
	}
}

func (p *Pool) runWorker(w *resolverWorker) {
	ticker := time.NewTicker(resolverPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			p.drain(w)
			return
		case task := <-w.queue:
			p.exec(task)
			p.drain(w)
		case <-ticker.C:
			p.drain(w)
		}
	}
}

func (p *Pool) drain(w *resolverWorker) {
	for {
		select {
		case task := <-w.queue:
			p.exec(task)
		default:
			return
		}
	}
}

// PushTask implements command.BackfillPusher and spec.md §4.7
// Submission.
func (p *Pool) PushTask(key string) error {
	if len(p.workers) == 0 {
		return ErrNoResolvers
	}
	h := slot.CRC16([]byte(key))
	if p.filter.testAndSet(h) {
		return ErrDuplicateSuppressed
	}
	w := p.pick()
	select {
	case w.queue <- MissTask{Ms: time.Now().UnixMilli(), Key: key}:
		return nil
	default:
		p.filter.clear(h)
		return ErrQueueFull
	}
}

// pick implements the random-start linear probe from spec.md §4.7 step
// 3: shortest queue wins, tie-broken by first-seen-at-length-0.
func (p *Pool) pick() *resolverWorker {
	n := len(p.workers)
	idx := rand.Intn(n)
	best := idx
	bestLen := -1
	for i := 0; i < n; i++ {
		l := len(p.workers[idx].queue)
		if bestLen == -1 || l < bestLen {
			bestLen = l
			best = idx
		}
		if bestLen == 0 {
			break
		}
		idx = (idx + 1) % n
	}
	return p.workers[best]
}

// FilterSet reports whether key's single-flight bit is currently set,
// for the admin console's `DEBUG FILTER <key>` command.
func (p *Pool) FilterSet(key string) bool {
	return p.filter.test(slot.CRC16([]byte(key)))
}

// exec implements spec.md §4.7 Task execution. The filter bit is always
// cleared on return, including every early-exit path (arity failure,
// presence miss, decode failure) — verified against ExecMongoTask /
// run()'s unconditional m_filter.reset(h) after exec.
func (p *Pool) exec(task MissTask) {
	defer p.filter.clear(slot.CRC16([]byte(task.Key)))

	parts := strings.Split(string(slot.StripHashTag([]byte(task.Key))), "&&")
	if len(parts) < 2 {
		p.log.Error().Str("key", task.Key).Msg("resolver: unrecognized key shape")
		return
	}
	typ, uid := parts[0], parts[1]

	var param string
	switch typ {
	case "category", "tag":
		if len(parts) != 3 {
			p.log.Error().Str("key", task.Key).Msg("resolver: invalid key arity")
			return
		}
		param = parts[2]
	case "category_stat", "tag_stat":
		if len(parts) != 2 {
			p.log.Error().Str("key", task.Key).Msg("resolver: invalid key arity")
			return
		}
	default:
		p.log.Error().Str("key", task.Key).Msg("resolver: unknown task type")
		return
	}

	ctx := context.Background()
	present, err := p.presence.Exists(ctx, uid)
	if err != nil {
		p.log.Error().Err(err).Str("uid", uid).Msg("resolver: presence probe failed")
		return
	}
	if !present {
		p.log.Debug().Str("uid", uid).Msg("resolver: uid not present, dropping task")
		return
	}

	var result []byte
	switch typ {
	case "category", "tag":
		doc, ok, err := p.docs.Query(ctx, uid, []string{typ})
		if err != nil {
			p.log.Error().Err(err).Str("uid", uid).Msg("resolver: document query failed")
			return
		}
		if !ok {
			doc = docstore.Document{}
		}
		ts, weighted := projection.DecodeCategoryOrTag(doc, typ, param, p.log)
		result = projection.BuildCategoryOrTagJSON(ts, weighted)
	default: // category_stat, tag_stat
		doc, ok, err := p.docs.Query(ctx, uid, []string{"ts", typ})
		if err != nil {
			p.log.Error().Err(err).Str("uid", uid).Msg("resolver: document query failed")
			return
		}
		if !ok {
			result = projection.Empty
			break
		}
		ts, data, ok2 := projection.DecodeStat(doc, typ)
		if !ok2 {
			p.log.Warn().Str("uid", uid).Msg("resolver: document failed schema check")
			result = projection.Empty
			break
		}
		result, err = projection.BuildStatJSON(ts, data)
		if err != nil {
			p.log.Error().Err(err).Str("uid", uid).Msg("resolver: json build failed")
			return
		}
	}

	idx := slot.KeyToSlot([]byte(task.Key))
	shard := p.store.Shard(idx)
	shard.SetWithTTL(task.Key, store.NewStringValue(result, p.compression), installTTL, time.Now())
}
