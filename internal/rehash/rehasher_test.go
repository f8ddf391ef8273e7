package rehash

import (
	"testing"
	"time"

	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiresStaleKeys(t *testing.T) {
	s := store.New()
	shard := s.Shard(0)
	now := time.Now()
	shard.SetWithTTL("k", store.NewStringValue([]byte("v"), store.DefaultCompressionPolicy), time.Millisecond, now)

	r := New(s, zerolog.Nop())
	r.sweepShard(shard, now.Add(time.Second))

	_, ok := shard.Lookup("k", now.Add(time.Second))
	require.False(t, ok)
}

func TestSweepOnGrownTableDoesNotPanic(t *testing.T) {
	s := store.New()
	shard := s.Shard(0)
	now := time.Now()
	for i := 0; i < 64; i++ {
		shard.SetWithTTL(string(rune('a'+i%26))+string(rune(i)), store.NewStringValue([]byte("v"), store.DefaultCompressionPolicy), 0, now)
	}
	r := New(s, zerolog.Nop())
	require.NotPanics(t, func() { r.sweepShard(shard, now) })
}
