package command

// Table is the static, immutable-after-init command registry (spec.md
// §4.3 / §5 "The command table is immutable after startup; concurrent
// readers need no lock."). Built once at package init from literal
// entries, the same way the original's redisCommandTable[] is a static
// C array.
var Table = buildTable()

func buildTable() map[string]*Command {
	entries := []*Command{
		{Name: "GET", Arity: 2, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdGet},
		{Name: "SET", Arity: -3, Flags: FlagWrite | FlagDenyOOM, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSet},
		{Name: "SETNX", Arity: 3, Flags: FlagWrite | FlagDenyOOM | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSetNX},
		{Name: "SETEX", Arity: 4, Flags: FlagWrite | FlagDenyOOM, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdSetEX},
		{Name: "APPEND", Arity: 3, Flags: FlagWrite | FlagDenyOOM, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdAppend},
		{Name: "STRLEN", Arity: 2, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdStrlen},
		{Name: "DEL", Arity: -2, Flags: FlagWrite, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdDel},
		{Name: "EXISTS", Arity: -2, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdExists},

		{Name: "HSET", Arity: -4, Flags: FlagWrite | FlagDenyOOM, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHSet},
		{Name: "HSETNX", Arity: 4, Flags: FlagWrite | FlagDenyOOM | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHSetNX},
		{Name: "HGET", Arity: 3, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHGet},
		{Name: "HMSET", Arity: -4, Flags: FlagWrite | FlagDenyOOM, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHMSet},
		{Name: "HMGET", Arity: -3, Flags: FlagRead, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHMGet},
		{Name: "HDEL", Arity: -3, Flags: FlagWrite, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHDel},
		{Name: "HLEN", Arity: 2, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHLen},
		{Name: "HSTRLEN", Arity: 3, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHStrlen},
		{Name: "HKEYS", Arity: 2, Flags: FlagRead, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHKeys},
		{Name: "HVALS", Arity: 2, Flags: FlagRead, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHVals},
		{Name: "HGETALL", Arity: 2, Flags: FlagRead, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHGetAll},
		{Name: "HEXISTS", Arity: 3, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdHExists},

		{Name: "TTL", Arity: 2, Flags: FlagRead | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdTTL},
		{Name: "EXPIRE", Arity: 3, Flags: FlagWrite | FlagFast, FirstKey: 1, LastKey: 1, KeyStep: 1, Handler: cmdExpire},

		{Name: "CLUSTER", Arity: -2, Flags: FlagAdmin | FlagFast, FirstKey: 0, Handler: cmdCluster},
	}
	t := make(map[string]*Command, len(entries))
	for _, c := range entries {
		t[c.Name] = c
	}
	return t
}
