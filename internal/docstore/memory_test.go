package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDriverRoundTrip(t *testing.T) {
	d := NewMemoryDriver()
	ctx := context.Background()

	_, ok, err := d.Query(ctx, "u1", nil)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, d.Insert(ctx, "u1", Document{"ts": int64(1), "category": map[string]any{"a": 1}}))
	require.ErrorIs(t, d.Insert(ctx, "u1", Document{}), ErrDuplicateKey)

	doc, ok, err := d.Query(ctx, "u1", []string{"ts"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Document{"ts": int64(1)}, doc)

	require.NoError(t, d.Upsert(ctx, "u1", Document{"ts": int64(2)}))
	doc, _, _ = d.Query(ctx, "u1", nil)
	require.Equal(t, int64(2), doc["ts"])
}
