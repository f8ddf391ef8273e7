package command

import (
	"strconv"

	"github.com/launix-de/icache/internal/proto"
	"github.com/launix-de/icache/internal/slot"
	"github.com/launix-de/icache/internal/store"
)

// cmdCluster implements the CLUSTER subcommand subset spec.md §4.3 names:
// SLOTS (the single required-command shard descriptor), KEYSLOT (routing
// introspection), and COUNTKEYSINSLOT (admin/debug visibility into shard
// occupancy). Anything else is an unknown-subcommand error, matching
// Redis's own CLUSTER behavior for unimplemented verbs.
func cmdCluster(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	if len(argv) < 2 {
		return nil, store.ErrNotAnInteger
	}
	switch upperString(argv[1]) {
	case "SLOTS":
		buf = proto.AppendMultiBulkHeader(buf, 1)
		buf = proto.AppendMultiBulkHeader(buf, 3)
		buf = proto.AppendInteger(buf, 0)
		buf = proto.AppendInteger(buf, int64(slot.NumSlots))
		buf = proto.AppendMultiBulkHeader(buf, 3)
		buf = proto.AppendBulk(buf, []byte(ctx.SelfAddr))
		buf = proto.AppendInteger(buf, int64(ctx.SelfPort))
		buf = proto.AppendBulk(buf, []byte(ctx.NodeID))
		return buf, nil
	case "KEYSLOT":
		if len(argv) != 3 {
			return nil, store.ErrNotAnInteger
		}
		return proto.AppendInteger(buf, int64(slot.KeyToSlot(argv[2]))), nil
	case "COUNTKEYSINSLOT":
		if len(argv) != 3 {
			return nil, store.ErrNotAnInteger
		}
		idx, err := strconv.Atoi(string(argv[2]))
		if err != nil || idx < 0 || idx > slot.NumSlots {
			return nil, store.ErrNotAnInteger
		}
		return proto.AppendInteger(buf, int64(ctx.Store.Shard(idx).Count())), nil
	default:
		return proto.AppendError(buf, "ERR Unknown CLUSTER subcommand"), nil
	}
}
