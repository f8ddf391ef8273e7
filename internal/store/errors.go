package store

import "errors"

// Error kinds mirror SPEC_FULL.md §7: handlers never throw control flow
// across the dispatcher, they produce reply bytes built from these
// sentinels so callers can errors.Is() without string matching.
var (
	ErrWrongType    = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")
	ErrCrossSlot    = errors.New("unknown operate db '-2'")
	ErrUnknownSlot  = errors.New("unknown operate db")
	ErrOOM          = errors.New("OOM command not allowed when used memory > 'maxmemory'")
	ErrBufferLimit  = errors.New("protocol error: invalid bulk length")
	ErrNotAnInteger = errors.New("value is not an integer or out of range")
)
