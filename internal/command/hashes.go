package command

import (
	"github.com/launix-de/icache/internal/proto"
	"github.com/launix-de/icache/internal/store"
)

// getOrCreateHash fetches key as a hash value, creating an empty one if
// absent, and rejects wrong-type keys as store.ErrWrongType. The caller
// must hold the shard's write lock.
func getOrCreateHash(ctx *Context, shard *store.Shard, key string) (*store.Value, error) {
	now := ctx.now()
	v, ok := shard.LookupLocked(key, now)
	if !ok {
		v = store.NewHashValue()
		shard.SetLocked(key, v, 0, now)
		return v, nil
	}
	if v.Type != store.TypeHash {
		return nil, store.ErrWrongType
	}
	return v, nil
}

// lookupHash fetches key as a hash value without creating it. Returns
// (nil, false, nil) on a plain miss.
func lookupHash(ctx *Context, shard *store.Shard, key string) (*store.Value, bool, error) {
	v, ok := shard.LookupLocked(key, ctx.now())
	if !ok {
		return nil, false, nil
	}
	if v.Type != store.TypeHash {
		return nil, false, store.ErrWrongType
	}
	return v, true, nil
}

// cmdHSet implements HSET key field value [field value ...].
func cmdHSet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	if len(argv)%2 != 0 {
		return nil, store.ErrNotAnInteger
	}
	v, err := getOrCreateHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	var created int64
	for i := 2; i+1 < len(argv); i += 2 {
		if v.HSet(string(argv[i]), argv[i+1], ctx.Hashes) {
			created++
		}
	}
	return proto.AppendInteger(buf, created), nil
}

// cmdHSetNX implements HSETNX key field value.
func cmdHSetNX(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, err := getOrCreateHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if _, exists := v.HGet(string(argv[2])); exists {
		return proto.AppendInteger(buf, 0), nil
	}
	v.HSet(string(argv[2]), argv[3], ctx.Hashes)
	return proto.AppendInteger(buf, 1), nil
}

// cmdHGet implements HGET key field.
func cmdHGet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return proto.AppendNilBulk(buf), nil
	}
	val, exists := v.HGet(string(argv[2]))
	if !exists {
		return proto.AppendNilBulk(buf), nil
	}
	return proto.AppendBulk(buf, val), nil
}

// cmdHMSet implements HMSET key field value [field value ...].
func cmdHMSet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	if len(argv)%2 != 0 {
		return nil, store.ErrNotAnInteger
	}
	v, err := getOrCreateHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	for i := 2; i+1 < len(argv); i += 2 {
		v.HSet(string(argv[i]), argv[i+1], ctx.Hashes)
	}
	return proto.AppendStatus(buf, "OK"), nil
}

// cmdHMGet implements HMGET key field [field ...].
func cmdHMGet(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	d := proto.NewDeferredMultiBulk()
	for _, f := range argv[2:] {
		if !ok {
			d.Add(proto.AppendNilBulk(nil))
			continue
		}
		val, exists := v.HGet(string(f))
		if !exists {
			d.Add(proto.AppendNilBulk(nil))
			continue
		}
		d.Add(proto.AppendBulk(nil, val))
	}
	return d.Finish(buf), nil
}

// cmdHDel implements HDEL key field [field ...].
func cmdHDel(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	var n int64
	for _, f := range argv[2:] {
		if v.HDel(string(f)) {
			n++
		}
	}
	return proto.AppendInteger(buf, n), nil
}

// cmdHLen implements HLEN key.
func cmdHLen(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	return proto.AppendInteger(buf, int64(v.HLen())), nil
}

// cmdHStrlen implements HSTRLEN key field.
func cmdHStrlen(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	val, exists := v.HGet(string(argv[2]))
	if !exists {
		return proto.AppendInteger(buf, 0), nil
	}
	return proto.AppendInteger(buf, int64(len(val))), nil
}

// cmdHKeys implements HKEYS key.
func cmdHKeys(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	d := proto.NewDeferredMultiBulk()
	if ok {
		v.HEach(func(field string, value []byte) {
			d.Add(proto.AppendBulk(nil, []byte(field)))
		})
	}
	return d.Finish(buf), nil
}

// cmdHVals implements HVALS key.
func cmdHVals(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	d := proto.NewDeferredMultiBulk()
	if ok {
		v.HEach(func(field string, value []byte) {
			d.Add(proto.AppendBulk(nil, value))
		})
	}
	return d.Finish(buf), nil
}

// cmdHGetAll implements HGETALL key.
func cmdHGetAll(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	d := proto.NewDeferredMultiBulk()
	if ok {
		v.HEach(func(field string, value []byte) {
			d.Add(proto.AppendBulk(nil, []byte(field)))
			d.Add(proto.AppendBulk(nil, value))
		})
	}
	return d.Finish(buf), nil
}

// cmdHExists implements HEXISTS key field.
func cmdHExists(ctx *Context, shard *store.Shard, argv [][]byte, buf []byte) ([]byte, error) {
	v, ok, err := lookupHash(ctx, shard, string(argv[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return proto.AppendInteger(buf, 0), nil
	}
	if _, exists := v.HGet(string(argv[2])); exists {
		return proto.AppendInteger(buf, 1), nil
	}
	return proto.AppendInteger(buf, 0), nil
}
