package server

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Listener owns the accept socket and round-robins accepted connections
// to the worker pool (spec.md §4.5). "Accept up to 32 per cycle" in the
// original's non-blocking poll loop has no equivalent need in Go's
// blocking Accept; the burst limit there exists only to bound time spent
// off the poller, which a dedicated accept goroutine doesn't share.
type Listener struct {
	ln       net.Listener
	handoffs []chan handoff
	next     int
	stop     chan struct{}
	log      zerolog.Logger
}

// NewListener binds addr and prepares the round-robin handoff channels,
// one per worker.
func NewListener(addr string, workers int, log zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	handoffs := make([]chan handoff, workers)
	for i := range handoffs {
		handoffs[i] = make(chan handoff, 64)
	}
	return &Listener{ln: ln, handoffs: handoffs, stop: make(chan struct{}), log: log}, nil
}

// Handoffs returns the per-worker channel a Worker should be constructed
// with.
func (l *Listener) Handoffs(workerIdx int) <-chan handoff { return l.handoffs[workerIdx] }

// Addr reports the bound address (useful when addr:0 was requested).
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Stop closes the listening socket, unblocking Run.
func (l *Listener) Stop() {
	close(l.stop)
	l.ln.Close()
}

// Run accepts connections until Stop, round-robining each to the next
// worker's handoff channel.
func (l *Listener) Run() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn().Err(err).Msg("accept error")
			continue
		}
		rec := handoff{conn: conn, acceptMs: time.Now().UnixMilli()}
		target := l.handoffs[l.next]
		l.next = (l.next + 1) % len(l.handoffs)
		select {
		case target <- rec:
		default:
			// chosen worker's handoff queue is saturated; drop round-robin
			// order and try the next one rather than block the accept loop.
			placed := false
			for i := 0; i < len(l.handoffs); i++ {
				idx := (l.next + i) % len(l.handoffs)
				select {
				case l.handoffs[idx] <- rec:
					placed = true
				default:
				}
				if placed {
					break
				}
			}
			if !placed {
				conn.Close()
			}
		}
	}
}
