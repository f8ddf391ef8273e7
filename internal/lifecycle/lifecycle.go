// Package lifecycle implements the shutdown barrier from spec.md §5:
// "stop flags are raised in listener, workers, rehasher, and all
// resolvers ... the shutdown barrier joins listener → workers →
// rehasher → resolvers". Grounded in the teacher's use of dc0d/onexit
// (storage/settings.go InitSettings) to register cleanup hooks that run
// once, in registration order, before the process exits.
package lifecycle

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dc0d/onexit"
	"github.com/rs/zerolog"
)

// Barrier joins a fixed sequence of stoppable components in the exact
// order spec.md §5 requires: listener, then workers, then rehasher, then
// resolvers. Each Stop is expected to block until that component has
// fully drained, so the barrier is itself synchronous top to bottom.
type Barrier struct {
	log   zerolog.Logger
	steps []step
}

type step struct {
	name string
	stop func()
}

func New(log zerolog.Logger) *Barrier {
	return &Barrier{log: log}
}

// Add appends one shutdown step. Call in the order components must stop:
// listener first, resolvers last.
func (b *Barrier) Add(name string, stop func()) {
	b.steps = append(b.steps, step{name: name, stop: stop})
}

// Shutdown runs every registered stop function in registration order,
// waiting for each to finish before starting the next.
func (b *Barrier) Shutdown() {
	for _, s := range b.steps {
		b.log.Info().Str("component", s.name).Msg("shutting down")
		s.stop()
	}
}

// InstallSignalHandler registers the barrier with onexit and starts a
// goroutine that calls onexit.Exit(0) on SIGINT/SIGTERM, the generalized
// analogue of the teacher's InitSettings registering a single onexit
// hook.
func (b *Barrier) InstallSignalHandler() {
	onexit.Register(func() { b.Shutdown() })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		onexit.Exit(0)
	}()
}
