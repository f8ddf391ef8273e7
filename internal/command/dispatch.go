package command

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/launix-de/icache/internal/proto"
	"github.com/launix-de/icache/internal/slot"
	"github.com/launix-de/icache/internal/store"
)

// Dispatch resolves argv[0] to a registered command, validates arity and
// key-slot agreement, acquires the right shard lock, and invokes the
// handler — spec.md §4.3 Dispatch. The returned bytes are a complete
// reply ready to enqueue for output; closeAfter reports whether the
// connection must be closed after writing it (protocol-level errors
// only).
func Dispatch(ctx *Context, argv [][]byte) (reply []byte, closeAfter bool) {
	if len(argv) == 0 {
		return nil, false
	}
	name := strings.ToUpper(string(argv[0]))
	cmd, ok := Table[name]
	if !ok {
		return proto.AppendError(nil, fmt.Sprintf("ERR unknown command '%s'", argv[0])), false
	}
	if !cmd.checkArity(len(argv)) {
		return proto.AppendError(nil, fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))), false
	}
	if cmd.Flags.Has(FlagDenyOOM) && ctx.overMemory() {
		return proto.AppendError(nil, "OOM command not allowed when used memory > 'maxmemory'"), false
	}

	shard, keyErr := resolveShard(ctx, cmd, argv)
	if keyErr != nil {
		return proto.AppendError(nil, keyErr.Error()), false
	}

	if cmd.Flags.Has(FlagWrite) {
		shard.Lock()
		defer shard.Unlock()
	} else {
		shard.RLock()
		defer shard.RUnlock()
	}

	out, err := cmd.Handler(ctx, shard, argv, nil)
	if err != nil {
		return proto.AppendError(nil, "ERR "+err.Error()), false
	}
	return out, false
}

type crossSlotError struct{}

func (crossSlotError) Error() string { return "ERR unknown operate db '-2'" }

// resolveShard computes the single shard every key in argv must agree on,
// per spec.md §4.3: "all keys in one command must hash to the same shard
// or the command is rejected with a cross-slot error." Commands with
// FirstKey==0 route to the administrative config shard.
func resolveShard(ctx *Context, cmd *Command, argv [][]byte) (*store.Shard, error) {
	if cmd.FirstKey == 0 {
		return ctx.Store.ConfigShard(), nil
	}
	last := cmd.LastKey
	if last < 0 {
		last = len(argv) - 1
	}
	step := cmd.KeyStep
	if step < 1 {
		step = 1
	}
	agreedSlot := -1
	var agreedShard *store.Shard
	for i := cmd.FirstKey; i <= last && i < len(argv); i += step {
		sh, idx := ctx.Store.ShardForKey(argv[i])
		if agreedSlot == -1 {
			agreedSlot = idx
			agreedShard = sh
		} else if idx != agreedSlot {
			return nil, crossSlotError{}
		}
	}
	if agreedShard == nil {
		return nil, fmt.Errorf("ERR unknown operate db")
	}
	return agreedShard, nil
}

// LooksLikeBackfillKey reports whether key matches the MissTask key shape
// `type&&uid&&param?` (spec.md §3) well enough to be worth a single-flight
// backfill attempt on a cache miss. This is a syntactic check only; exec()
// in internal/resolver does the authoritative arity validation per type.
func LooksLikeBackfillKey(key []byte) bool {
	parts := bytes.Split(slot.StripHashTag(key), []byte("&&"))
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	switch string(parts[0]) {
	case "category", "tag", "category_stat", "tag_stat":
		return true
	default:
		return false
	}
}

// KeySlot exposes slot.KeyToSlot to callers outside this package.
func KeySlot(key []byte) int { return slot.KeyToSlot(key) }
