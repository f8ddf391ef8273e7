package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShardSetGetExpiry(t *testing.T) {
	s := NewShard()
	now := time.Now()
	s.SetWithTTL("k", NewStringValue([]byte("v"), DefaultCompressionPolicy), 50*time.Millisecond, now)

	v, ok := s.Lookup("k", now)
	require.True(t, ok)
	b, err := v.Bytes()
	require.NoError(t, err)
	require.Equal(t, "v", string(b))

	_, ok = s.Lookup("k", now.Add(100*time.Millisecond))
	require.False(t, ok, "key should have expired")
}

func TestShardDirtyCounterTracksSetAndDelete(t *testing.T) {
	s := NewShard()
	now := time.Now()
	require.EqualValues(t, 0, s.Dirty())
	s.SetWithTTL("a", NewStringValue([]byte("1"), DefaultCompressionPolicy), 0, now)
	s.SetWithTTL("b", NewStringValue([]byte("2"), DefaultCompressionPolicy), 0, now)
	require.EqualValues(t, 2, s.Dirty())
	require.Equal(t, 2, s.Count())

	s.Delete("a")
	require.EqualValues(t, 3, s.Dirty())
	require.Equal(t, 1, s.Count())
}

func TestShardAvgTTLConverges(t *testing.T) {
	s := NewShard()
	now := time.Now()
	for i := 0; i < 50; i++ {
		s.SetWithTTL("k", NewStringValue([]byte("v"), DefaultCompressionPolicy), time.Second, now)
	}
	require.InDelta(t, 1000, s.AvgTTL(), 1)
}

func TestShardExpireNearest(t *testing.T) {
	s := NewShard()
	now := time.Now()
	s.SetWithTTL("soon", NewStringValue([]byte("v"), DefaultCompressionPolicy), time.Millisecond, now)
	s.SetWithTTL("later", NewStringValue([]byte("v"), DefaultCompressionPolicy), time.Hour, now)

	s.Lock()
	n := s.ExpireNearest(now.Add(time.Second), 10)
	s.Unlock()
	require.Equal(t, 1, n)
	require.Equal(t, 1, s.Count())
}
