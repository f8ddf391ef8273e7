// Package server implements the listener/worker/event-loop architecture
// from spec.md §4.4–§4.6: a TCP listener round-robins accepted
// connections to a fixed worker pool over Go channels (the idiomatic
// substitute the Design Notes endorse for the original's pipe handoff),
// and each worker serializes command dispatch for the connections it
// owns.
package server

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/launix-de/icache/internal/proto"
)

// clientState names the per-connection state machine from spec.md §4.4.
// Transitions here are driven by the read goroutine finishing a parse
// (HAS_COMMAND), the worker picking it up (DISPATCHING), and the reply
// being written (REPLYING, then back to READING_QUERY).
type clientState int

const (
	stateReadingQuery clientState = iota
	stateHasCommand
	stateDispatching
	stateReplying
	stateClosed
)

// client is one accepted connection, owned exclusively by the worker
// that registered it (spec.md §5 Ownership). ID is a google/uuid
// connection identifier surfaced in log fields
// (SPEC_FULL.md §3), the generalized Go analogue of the teacher's
// storage/fast_uuid.go identifiers.
type client struct {
	id        uuid.UUID
	conn      net.Conn
	query     *proto.QueryBuffer
	state     clientState
	closeNext bool // set after a protocol-fatal error; connection closes post-reply
	lastSeen  time.Time
	acceptedAt time.Time
}

func newClient(conn net.Conn, maxQueryBuf int) *client {
	now := time.Now()
	return &client{
		id:         uuid.New(),
		conn:       conn,
		query:      proto.NewQueryBuffer(maxQueryBuf),
		state:      stateReadingQuery,
		lastSeen:   now,
		acceptedAt: now,
	}
}

// compactionDue implements the query buffer resize policy from spec.md
// §4.4: compact when the buffer has grown well past its running peak,
// or the client has been idle for a while with a non-trivial buffer.
func (c *client) compactionDue(now time.Time) bool {
	const bigArgThreshold = 64 * 1024
	const idleThreshold = 2 * time.Second
	const idleBufferFloor = 1024

	bufCap, peak, bufLen := c.query.Cap(), c.query.Peak, c.query.Len()
	if bufCap > bigArgThreshold && bufCap > 2*peak {
		return true
	}
	if now.Sub(c.lastSeen) > idleThreshold && bufLen > idleBufferFloor {
		return true
	}
	return false
}
