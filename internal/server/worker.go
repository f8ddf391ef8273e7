package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/launix-de/icache/internal/command"
	"github.com/launix-de/icache/internal/proto"
	"github.com/rs/zerolog"
)

// handoff is the record the listener hands to a worker — the channel
// substitute for the original's `{fd, accept_ms}` pipe write (spec.md
// §4.5, SPEC_FULL.md §4.4–4.6).
type handoff struct {
	conn     net.Conn
	acceptMs int64
}

// frame is one fully-parsed command ready for dispatch, produced by a
// connection's read goroutine and handed to the owning worker's single
// dispatch loop so that all commands on one connection are processed in
// arrival order and no two commands from the same worker ever dispatch
// concurrently (spec.md §5 Ordering guarantees).
type frame struct {
	c    *client
	argv [][]byte
}

// closeNotice tells the worker loop a connection's read side is done, so
// it can drop the client and close the socket.
type closeNotice struct {
	c   *client
	err error
}

// Worker owns a disjoint set of client connections (spec.md §5
// Ownership: "a client is owned exclusively by the worker whose event
// loop holds its fd"). Go has no epoll-style readiness loop in the
// standard library's idiom; the per-connection blocking read goroutine
// plus a single serializing dispatch loop is the natural translation —
// ordering and ownership guarantees are identical, only the I/O
// multiplexing mechanism differs.
type Worker struct {
	id       int
	ctx      *command.Context
	handoffs <-chan handoff
	frames   chan frame
	closes   chan closeNotice
	stop     chan struct{}
	log      zerolog.Logger
	maxQueryBuf int
}

func NewWorker(id int, ctx *command.Context, handoffs <-chan handoff, maxQueryBuf int, log zerolog.Logger) *Worker {
	return &Worker{
		id:          id,
		ctx:         ctx,
		handoffs:    handoffs,
		frames:      make(chan frame, 256),
		closes:      make(chan closeNotice, 32),
		stop:        make(chan struct{}),
		log:         log.With().Int("worker", id).Logger(),
		maxQueryBuf: maxQueryBuf,
	}
}

// Stop signals the worker to exit after its current iteration (spec.md
// §5 Cancellation: "each thread checks its flag at every loop
// iteration").
func (w *Worker) Stop() { close(w.stop) }

// Run is the worker's event loop: register newly handed-off connections,
// dispatch parsed frames, and reap closed connections. Runs until Stop.
func (w *Worker) Run() {
	clients := make(map[*client]struct{})
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			for c := range clients {
				c.conn.Close()
			}
			return
		case h, ok := <-w.handoffs:
			if !ok {
				continue
			}
			c := newClient(h.conn, w.maxQueryBuf)
			clients[c] = struct{}{}
			go w.readLoop(c)
		case f := <-w.frames:
			w.dispatch(f)
		case n := <-w.closes:
			delete(clients, n.c)
			n.c.conn.Close()
		case now := <-ticker.C:
			for c := range clients {
				if c.compactionDue(now) {
					c.query.Compact()
				}
			}
		}
	}
}

// readLoop owns one connection's inbound bytes: read, append to the
// client's query buffer, parse every complete command it can, and push
// each as a frame to the worker's single dispatch loop. This is the
// "HAS_COMMAND" transition of spec.md §4.4's state machine; DISPATCHING
// and REPLYING happen on the worker goroutine in dispatch().
func (w *Worker) readLoop(c *client) {
	r := bufio.NewReaderSize(c.conn, 16*1024)
	buf := make([]byte, 16*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.lastSeen = time.Now()
			if appendErr := c.query.Append(buf[:n]); appendErr != nil {
				c.conn.Write(proto.AppendError(nil, "ERR "+appendErr.Error()))
				w.closes <- closeNotice{c: c, err: appendErr}
				return
			}
			for {
				argv, ok, parseErr := c.query.TryParse()
				if parseErr != nil {
					reply := proto.AppendError(nil, "ERR "+parseErr.Error())
					c.conn.Write(reply)
					w.closes <- closeNotice{c: c, err: parseErr}
					return
				}
				if !ok {
					break
				}
				if len(argv) == 0 {
					continue
				}
				w.frames <- frame{c: c, argv: argv}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				w.log.Debug().Err(err).Str("client", c.id.String()).Msg("connection read error")
			}
			w.closes <- closeNotice{c: c, err: err}
			return
		}
	}
}

// dispatch runs DISPATCHING and REPLYING for one frame: invoke the
// command table, write the reply, and close the connection if the
// dispatcher says the protocol is no longer salvageable.
func (w *Worker) dispatch(f frame) {
	f.c.state = stateDispatching
	reply, closeAfter := command.Dispatch(w.ctx, f.argv)
	f.c.state = stateReplying
	if len(reply) > 0 {
		if _, err := f.c.conn.Write(reply); err != nil {
			w.closes <- closeNotice{c: f.c, err: err}
			return
		}
	}
	if closeAfter {
		w.closes <- closeNotice{c: f.c}
		return
	}
	f.c.state = stateReadingQuery
}
