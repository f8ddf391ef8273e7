package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEncodingConvertsOnEntryCount(t *testing.T) {
	v := NewHashValue()
	thresholds := HashConversionThresholds{MaxEntries: 3, MaxValueLen: 64}
	v.HSet("f1", []byte("v1"), thresholds)
	v.HSet("f2", []byte("v2"), thresholds)
	require.Equal(t, EncodingHashCompact, v.Encoding)
	v.HSet("f3", []byte("v3"), thresholds)
	v.HSet("f4", []byte("v4"), thresholds)
	require.Equal(t, EncodingHashTable, v.Encoding)

	b, ok := v.HGet("f1")
	require.True(t, ok)
	require.Equal(t, "v1", string(b))
}

func TestHashEncodingConvertsOnValueLength(t *testing.T) {
	v := NewHashValue()
	thresholds := HashConversionThresholds{MaxEntries: 128, MaxValueLen: 8}
	v.HSet("f1", []byte(strings.Repeat("x", 9)), thresholds)
	require.Equal(t, EncodingHashTable, v.Encoding)
}

func TestHashDelExists(t *testing.T) {
	v := NewHashValue()
	thresholds := DefaultHashThresholds
	v.HSet("f", []byte("v"), thresholds)
	require.True(t, v.HDel("f"))
	_, ok := v.HGet("f")
	require.False(t, ok)
	require.False(t, v.HDel("f"))
}

func TestCompressedStringRoundTrip(t *testing.T) {
	policy := CompressionPolicy{Enabled: true, MinSize: 16, MaxRatio: 0.9}
	payload := []byte(strings.Repeat("aaaaaaaaaa", 50))
	v := NewStringValue(payload, policy)
	require.Equal(t, EncodingCompressedRaw, v.Encoding)

	b, err := v.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, b)
	require.Equal(t, len(payload), v.Len())
}

func TestStringEncodingPicksEmbeddedForShort(t *testing.T) {
	v := NewStringValue([]byte("short"), DefaultCompressionPolicy)
	require.Equal(t, EncodingEmbeddedString, v.Encoding)
}
