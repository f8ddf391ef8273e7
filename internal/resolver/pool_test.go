package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/launix-de/icache/internal/docstore"
	"github.com/launix-de/icache/internal/presence"
	"github.com/launix-de/icache/internal/slot"
	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) (*Pool, *docstore.MemoryDriver, *presence.StaticClient, *store.Store) {
	t.Helper()
	st := store.New()
	docs := docstore.NewMemoryDriver()
	pres := presence.NewStaticClient()
	p := New(2, 8, st, docs, pres, store.DefaultCompressionPolicy, zerolog.Nop())
	go p.Run()
	t.Cleanup(p.Stop)
	return p, docs, pres, st
}

func waitForInstall(t *testing.T, st *store.Store, key string) *store.Value {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		idx := slot.KeyToSlot([]byte(key))
		shard := st.Shard(idx)
		if v, ok := shard.Lookup(key, time.Now()); ok {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("key %q was never installed", key)
	return nil
}

func TestPushTaskResolvesCategory(t *testing.T) {
	p, docs, pres, st := newTestPool(t)
	pres.Present["u1"] = true
	docs.Insert(context.Background(), "u1", docstore.Document{
		"category": map[string]any{
			"sports": map[string]any{
				"ts":       int64(100),
				"weighted": []any{map[string]any{"tag": "football", "weight": 0.5}},
			},
		},
	})

	require.NoError(t, p.PushTask("category&&u1&&sports"))
	v := waitForInstall(t, st, "category&&u1&&sports")
	b, err := v.Bytes()
	require.NoError(t, err)
	require.JSONEq(t, `{"ts":100,"weighted":[{"tag":"football","weight":0.5}]}`, string(b))
}

func TestPushTaskResolvesHashTaggedCategory(t *testing.T) {
	p, docs, pres, st := newTestPool(t)
	pres.Present["u1"] = true
	docs.Insert(context.Background(), "u1", docstore.Document{
		"category": map[string]any{
			"c1": map[string]any{
				"ts":       int64(200),
				"weighted": []any{map[string]any{"tag": "football", "weight": 0.5}},
			},
		},
	})

	require.NoError(t, p.PushTask("{u}category&&u1&&c1"))
	v := waitForInstall(t, st, "{u}category&&u1&&c1")
	b, err := v.Bytes()
	require.NoError(t, err)
	require.JSONEq(t, `{"ts":200,"weighted":[{"tag":"football","weight":0.5}]}`, string(b))
}

func TestPushTaskDropsOnAbsentPresence(t *testing.T) {
	p, _, _, st := newTestPool(t)
	require.NoError(t, p.PushTask("category&&missing&&x"))
	time.Sleep(50 * time.Millisecond)
	idx := slot.KeyToSlot([]byte("category&&missing&&x"))
	_, ok := st.Shard(idx).Lookup("category&&missing&&x", time.Now())
	require.False(t, ok)
}

func TestPushTaskDuplicateSuppressed(t *testing.T) {
	p, _, pres, _ := newTestPool(t)
	pres.Present["u2"] = true
	require.NoError(t, p.PushTask("tag&&u2&&a"))
	require.ErrorIs(t, p.PushTask("tag&&u2&&a"), ErrDuplicateSuppressed)
}

func TestFilterBitClearedAfterExec(t *testing.T) {
	p, _, pres, _ := newTestPool(t)
	pres.Present["u3"] = true
	require.NoError(t, p.PushTask("tag_stat&&u3"))
	deadline := time.Now().Add(500 * time.Millisecond)
	h := slot.CRC16([]byte("tag_stat&&u3"))
	for time.Now().Before(deadline) && p.filter.test(h) {
		time.Sleep(5 * time.Millisecond)
	}
	require.False(t, p.filter.test(h))
}
