package command

import (
	"testing"
	"time"

	"github.com/launix-de/icache/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct{ pushed []string }

func (f *fakeResolver) PushTask(key string) error {
	f.pushed = append(f.pushed, key)
	return nil
}

func newTestContext() (*Context, *fakeResolver) {
	r := &fakeResolver{}
	return &Context{
		Store:       store.New(),
		Resolver:    r,
		Hashes:      store.DefaultHashThresholds,
		Compression: store.DefaultCompressionPolicy,
	}, r
}

func argv(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx, _ := newTestContext()
	reply, _ := Dispatch(ctx, argv("SET", "foo", "bar"))
	require.Equal(t, "+OK\r\n", string(reply))
	reply, _ = Dispatch(ctx, argv("GET", "foo"))
	require.Equal(t, "$3\r\nbar\r\n", string(reply))
}

func TestGetMissPushesBackfillTask(t *testing.T) {
	ctx, r := newTestContext()
	reply, _ := Dispatch(ctx, argv("GET", "category&&42"))
	require.Equal(t, "$-1\r\n", string(reply))
	require.Equal(t, []string{"category&&42"}, r.pushed)
}

func TestGetMissPushesBackfillTaskForHashTaggedKey(t *testing.T) {
	ctx, r := newTestContext()
	reply, _ := Dispatch(ctx, argv("GET", "{u}category&&u1&&c1"))
	require.Equal(t, "$-1\r\n", string(reply))
	require.Equal(t, []string{"{u}category&&u1&&c1"}, r.pushed)
}

func TestGetMissOnNonBackfillKeyDoesNotPush(t *testing.T) {
	ctx, r := newTestContext()
	reply, _ := Dispatch(ctx, argv("GET", "plainkey"))
	require.Equal(t, "$-1\r\n", string(reply))
	require.Empty(t, r.pushed)
}

func TestSetExpiresAfterTTL(t *testing.T) {
	ctx, _ := newTestContext()
	now := time.Now()
	ctx.Now = func() time.Time { return now }
	Dispatch(ctx, argv("SET", "k", "v", "EX", "1"))
	reply, _ := Dispatch(ctx, argv("GET", "k"))
	require.Equal(t, "$1\r\nv\r\n", string(reply))

	ctx.Now = func() time.Time { return now.Add(2 * time.Second) }
	reply, _ = Dispatch(ctx, argv("GET", "k"))
	require.Equal(t, "$-1\r\n", string(reply))
}

func TestWrongTypeError(t *testing.T) {
	ctx, _ := newTestContext()
	Dispatch(ctx, argv("SET", "k", "v"))
	reply, _ := Dispatch(ctx, argv("HGET", "k", "field"))
	require.Contains(t, string(reply), "WRONGTYPE")
}

func TestHashOperations(t *testing.T) {
	ctx, _ := newTestContext()
	reply, _ := Dispatch(ctx, argv("HSET", "h", "a", "1", "b", "2"))
	require.Equal(t, ":2\r\n", string(reply))

	reply, _ = Dispatch(ctx, argv("HGET", "h", "a"))
	require.Equal(t, "$1\r\n1\r\n", string(reply))

	reply, _ = Dispatch(ctx, argv("HLEN", "h"))
	require.Equal(t, ":2\r\n", string(reply))

	reply, _ = Dispatch(ctx, argv("HDEL", "h", "a"))
	require.Equal(t, ":1\r\n", string(reply))

	reply, _ = Dispatch(ctx, argv("HLEN", "h"))
	require.Equal(t, ":1\r\n", string(reply))
}

func TestCrossSlotRejected(t *testing.T) {
	ctx, _ := newTestContext()
	reply, _ := Dispatch(ctx, argv("DEL", "{a}x", "{b}y"))
	require.Equal(t, "-ERR unknown operate db '-2'\r\n", string(reply))
}

func TestUnknownCommand(t *testing.T) {
	ctx, _ := newTestContext()
	reply, _ := Dispatch(ctx, argv("FROBNICATE", "x"))
	require.Contains(t, string(reply), "unknown command")
}

func TestClusterKeyslot(t *testing.T) {
	ctx, _ := newTestContext()
	reply, _ := Dispatch(ctx, argv("CLUSTER", "KEYSLOT", "foo"))
	require.Regexp(t, `^:\d+\r\n$`, string(reply))
}

func TestClusterSlots(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.SelfAddr = "127.0.0.1"
	ctx.SelfPort = 10000
	ctx.NodeID = "icache-1"
	reply, _ := Dispatch(ctx, argv("CLUSTER", "SLOTS"))
	require.Equal(t,
		"*1\r\n*3\r\n:0\r\n:16384\r\n*3\r\n$9\r\n127.0.0.1\r\n:10000\r\n$8\r\nicache-1\r\n",
		string(reply))
}
