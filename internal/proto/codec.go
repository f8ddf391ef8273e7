// Package proto implements the wire-compatible subset of the Redis text
// protocol described in spec.md §4.2/§6: inline and multi-bulk request
// framing, and status/error/integer/bulk/multi-bulk reply encoding.
//
// Grounded in _examples/original_source/src/tiny-redis/server.cpp's
// processInlineBuffer/processMultibulkBuffer, restated as a buffer-owning
// parser rather than callback-driven state, matching the teacher's
// preference for plain structs over callback tables (Design Notes §9).
package proto

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrProtocol signals malformed framing; per spec.md §7 the connection
// must be closed after the error reply is written.
var ErrProtocol = errors.New("protocol error")

// ErrTooBig signals a bulk length (or total buffered size) beyond the
// configured maximum; same disposition as ErrProtocol.
var ErrTooBig = errors.New("protocol error: invalid bulk length")

const defaultMaxQueryBuf = 512 * 1024 * 1024 // 512 MiB, spec.md §4.2 default

// QueryBuffer is a client's growable, resumable input buffer. Partial
// input is retained across reads; MaxSize enforces spec.md's "bulk
// lengths above a configurable max ... cause the connection to be
// closed".
type QueryBuffer struct {
	buf     []byte
	Peak    int // largest length buf has held since the last compaction
	MaxSize int
}

func NewQueryBuffer(maxSize int) *QueryBuffer {
	if maxSize <= 0 {
		maxSize = defaultMaxQueryBuf
	}
	return &QueryBuffer{MaxSize: maxSize}
}

// Append adds newly read bytes to the buffer.
func (q *QueryBuffer) Append(data []byte) error {
	if len(q.buf)+len(data) > q.MaxSize {
		return ErrTooBig
	}
	q.buf = append(q.buf, data...)
	if len(q.buf) > q.Peak {
		q.Peak = len(q.buf)
	}
	return nil
}

// Len returns the number of unconsumed bytes currently buffered.
func (q *QueryBuffer) Len() int { return len(q.buf) }

// Cap returns the backing array's capacity, the quantity the client
// compaction policy (spec.md §4.4) compares against Peak.
func (q *QueryBuffer) Cap() int { return cap(q.buf) }

// Compact shrinks buf's backing array to its current length and resets
// Peak, per spec.md §4.4's client query buffer resize policy. Callers
// decide when to invoke this (big-arg threshold / idle timer), not this
// type itself.
func (q *QueryBuffer) Compact() {
	shrunk := make([]byte, len(q.buf))
	copy(shrunk, q.buf)
	q.buf = shrunk
	q.Peak = len(q.buf)
}

func (q *QueryBuffer) consume(n int) {
	q.buf = q.buf[n:]
}

// TryParse attempts to parse exactly one complete command from the
// buffered bytes. ok=false, err=nil means more input is needed; the
// buffer's unconsumed remainder is left intact for the next Append+retry
// (the "resumable" parsing spec.md §4.2 requires).
func (q *QueryBuffer) TryParse() (args [][]byte, ok bool, err error) {
	if len(q.buf) == 0 {
		return nil, false, nil
	}
	if q.buf[0] == '*' {
		return q.tryParseMultiBulk()
	}
	return q.tryParseInline()
}

func (q *QueryBuffer) tryParseInline() ([][]byte, bool, error) {
	idx := bytes.IndexByte(q.buf, '\n')
	if idx == -1 {
		if len(q.buf) > 64*1024 {
			return nil, false, ErrProtocol
		}
		return nil, false, nil
	}
	line := q.buf[:idx]
	line = bytes.TrimSuffix(line, []byte("\r"))
	q.consume(idx + 1)
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return q.TryParse() // blank inline line: skip and try again
	}
	return fields, true, nil
}

func (q *QueryBuffer) tryParseMultiBulk() ([][]byte, bool, error) {
	pos := 0
	n, newPos, ok, err := readCRLFInt(q.buf, pos, '*')
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	pos = newPos
	if n <= 0 {
		q.consume(pos)
		return q.TryParse()
	}
	if n > 1024*1024 {
		return nil, false, ErrProtocol
	}
	args := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if pos >= len(q.buf) {
			return nil, false, nil
		}
		if q.buf[pos] != '$' {
			return nil, false, ErrProtocol
		}
		blen, bpos, ok, err := readCRLFInt(q.buf, pos, '$')
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if blen < 0 || blen > q.MaxSize {
			return nil, false, ErrTooBig
		}
		need := bpos + blen + 2
		if len(q.buf) < need {
			return nil, false, nil
		}
		args = append(args, append([]byte(nil), q.buf[bpos:bpos+blen]...))
		pos = need
	}
	q.consume(pos)
	return args, true, nil
}

// readCRLFInt reads "<sigil><int>\r\n" starting at buf[pos], where sigil
// is the leading byte already known to match. Returns the parsed integer,
// the offset just past the CRLF, and ok=false if the line isn't complete
// yet.
func readCRLFInt(buf []byte, pos int, sigil byte) (n, next int, ok bool, err error) {
	if buf[pos] != sigil {
		return 0, 0, false, ErrProtocol
	}
	idx := bytes.IndexByte(buf[pos:], '\n')
	if idx == -1 {
		return 0, 0, false, nil
	}
	lineEnd := pos + idx
	line := buf[pos+1 : lineEnd]
	line = bytes.TrimSuffix(line, []byte("\r"))
	v, err := strconv.Atoi(string(line))
	if err != nil {
		return 0, 0, false, ErrProtocol
	}
	return v, lineEnd + 1, true, nil
}
