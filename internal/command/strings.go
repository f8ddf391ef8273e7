package command

import (
	"strconv"
	"time"

	"github.com/launix-de/icache/internal/proto"
	"github.com/launix-de/icache/internal/store"
)

// cmdGet implements GET (spec.md §4.3 / §4.7): a miss on a key shaped like
// a backfill task enqueues it with the resolver before replying nil, so a
// later GET has a chance of finding the projection the resolver built.
func cmdGet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	key := string(argv[1])
	v, ok := shard.LookupLocked(key, ctx.now())
	if !ok {
		if ctx.Resolver != nil && LooksLikeBackfillKey(argv[1]) {
			_ = ctx.Resolver.PushTask(key)
		}
		return proto.AppendNilBulk(buf), nil
	}
	if v.Type != store.TypeString {
		return nil, store.ErrWrongType
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	return proto.AppendBulk(buf, b), nil
}

// cmdSet implements SET key value [EX seconds]. Only the EX option from
// the full Redis grammar is supported (spec.md §4.3 Non-goals).
func cmdSet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	ttl, err := parseSetOptions(argv[3:])
	if err != nil {
		return nil, err
	}
	v := store.NewStringValue(argv[2], ctx.Compression)
	shard.SetLocked(string(argv[1]), v, ttl, ctx.now())
	return proto.AppendStatus(buf, "OK"), nil
}

func parseSetOptions(opts [][]byte) (time.Duration, error) {
	var ttl time.Duration
	for i := 0; i < len(opts); i++ {
		switch upperString(opts[i]) {
		case "EX":
			if i+1 >= len(opts) {
				return 0, store.ErrNotAnInteger
			}
			secs, err := strconv.ParseInt(string(opts[i+1]), 10, 64)
			if err != nil {
				return 0, store.ErrNotAnInteger
			}
			ttl = time.Duration(secs) * time.Second
			i++
		default:
			return 0, store.ErrNotAnInteger
		}
	}
	return ttl, nil
}

func upperString(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// cmdSetNX implements SETNX: set only if the key does not already exist.
func cmdSetNX(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	if _, ok := shard.LookupLocked(string(argv[1]), ctx.now()); ok {
		return proto.AppendInteger(buf, 0), nil
	}
	v := store.NewStringValue(argv[2], ctx.Compression)
	shard.SetLocked(string(argv[1]), v, 0, ctx.now())
	return proto.AppendInteger(buf, 1), nil
}

// cmdSetEX implements SETEX key seconds value.
func cmdSetEX(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	secs, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil || secs <= 0 {
		return nil, store.ErrNotAnInteger
	}
	v := store.NewStringValue(argv[3], ctx.Compression)
	shard.SetLocked(string(argv[1]), v, time.Duration(secs)*time.Second, ctx.now())
	return proto.AppendStatus(buf, "OK"), nil
}

// cmdAppend implements APPEND key value, preserving any existing TTL.
func cmdAppend(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	now := ctx.now()
	key := string(argv[1])
	existing, ok := shard.LookupLocked(key, now)
	if !ok {
		v := store.NewStringValue(argv[2], ctx.Compression)
		shard.SetLocked(key, v, 0, now)
		return proto.AppendInteger(buf, int64(len(argv[2]))), nil
	}
	if existing.Type != store.TypeString {
		return nil, store.ErrWrongType
	}
	old, err := existing.Bytes()
	if err != nil {
		return nil, err
	}
	combined := append(append([]byte(nil), old...), argv[2]...)
	var remaining time.Duration
	if existing.ExpireAt != 0 {
		if d := time.UnixMilli(existing.ExpireAt).Sub(now); d > 0 {
			remaining = d
		}
	}
	v := store.NewStringValue(combined, ctx.Compression)
	shard.SetLocked(key, v, remaining, now)
	return proto.AppendInteger(buf, int64(len(combined))), nil
}

// cmdStrlen implements STRLEN.
func cmdStrlen(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok := shard.LookupLocked(string(argv[1]), ctx.now())
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	if v.Type != store.TypeString {
		return nil, store.ErrWrongType
	}
	return proto.AppendInteger(buf, int64(v.Len())), nil
}

// cmdDel implements DEL key [key ...], deleting from possibly several keys
// that all agreed on the same shard (dispatch already enforced that).
func cmdDel(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	var n int64
	for _, k := range argv[1:] {
		if shard.DeleteLocked(string(k)) {
			n++
		}
	}
	return proto.AppendInteger(buf, n), nil
}

// cmdExists implements EXISTS key [key ...], counting repeats of the same
// key as separate hits the way Redis does.
func cmdExists(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	now := ctx.now()
	var n int64
	for _, k := range argv[1:] {
		if _, ok := shard.LookupLocked(string(k), now); ok {
			n++
		}
	}
	return proto.AppendInteger(buf, n), nil
}

// cmdTTL implements TTL key, returning seconds remaining, -1 if no expiry,
// -2 if the key does not exist.
func cmdTTL(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	now := ctx.now()
	v, ok := shard.LookupLocked(string(argv[1]), now)
	if !ok {
		return proto.AppendInteger(buf, -2), nil
	}
	if v.ExpireAt == 0 {
		return proto.AppendInteger(buf, -1), nil
	}
	remaining := time.UnixMilli(v.ExpireAt).Sub(now)
	if remaining < 0 {
		return proto.AppendInteger(buf, -2), nil
	}
	return proto.AppendInteger(buf, int64(remaining/time.Second)), nil
}

// cmdExpire implements EXPIRE key seconds.
func cmdExpire(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	secs, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return nil, store.ErrNotAnInteger
	}
	now := ctx.now()
	v, ok := shard.LookupLocked(string(argv[1]), now)
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	if secs <= 0 {
		shard.DeleteLocked(string(argv[1]))
		return proto.AppendInteger(buf, 1), nil
	}
	shard.SetLocked(string(argv[1]), v, time.Duration(secs)*time.Second, now)
	return proto.AppendInteger(buf, 1), nil
}
