// Package command implements the fixed command registry and dispatcher
// from spec.md §4.3: arity/flag table, slot extraction, and the handlers
// for the required command set.
package command

import (
	"time"

	"github.com/launix-de/icache/internal/store"
)

// Flags mirror spec.md §4.3's per-command flags.
type Flags uint8

const (
	FlagRead Flags = 1 << iota
	FlagWrite
	FlagFast
	FlagAdmin
	FlagDenyOOM
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// BackfillPusher is the single-flight submission entrypoint the async miss
// resolver exposes (spec.md §4.7 push_task); command handlers depend only
// on this interface to avoid an import cycle with internal/resolver.
type BackfillPusher interface {
	PushTask(key string) error
}

// Context is threaded through every handler call: the live store, the
// backfill pusher, a clock (overridable in tests), and the resource limits
// a `deny-oom` command must respect. No ambient globals, per Design
// Notes §9 ("a single immutable-after-init configuration value plus
// explicit context handles").
type Context struct {
	Store       *store.Store
	Resolver    BackfillPusher
	Now         func() time.Time
	MaxMemory   int64
	UsedMemory  func() int64
	Hashes      store.HashConversionThresholds
	Compression store.CompressionPolicy

	// SelfAddr/SelfPort/NodeID are the advertised address `CLUSTER SLOTS`
	// reports for this node's single shard range (spec.md §4.3/§6).
	SelfAddr string
	SelfPort int
	NodeID   string
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Context) overMemory() bool {
	if c.MaxMemory <= 0 || c.UsedMemory == nil {
		return false
	}
	return c.UsedMemory() > c.MaxMemory
}

// HandlerFunc executes a command, appending its reply to buf and
// returning the extended slice. argv includes the command name at
// index 0 (matching the original's argv convention, spec.md §4.3/§6).
type HandlerFunc func(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error)

// Command is one entry of the static command table.
type Command struct {
	Name     string
	Arity    int // positive: exact argc; negative: minimum argc (abs value)
	Flags    Flags
	FirstKey int // 0 means "no keys", routes to the config shard
	LastKey  int // -1 means "last argument"
	KeyStep  int
	Handler  HandlerFunc
}

func (c *Command) checkArity(argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}
