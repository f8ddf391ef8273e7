package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashTableSetLookupDelete(t *testing.T) {
	h := newHashTable()
	h.set("a", &Value{Type: TypeString, str: []byte("1")})
	v, ok := h.lookup("a")
	require.True(t, ok)
	require.Equal(t, []byte("1"), v.str)

	require.True(t, h.delete("a"))
	_, ok = h.lookup("a")
	require.False(t, ok)
}

func TestHashTableGrowTriggersRehash(t *testing.T) {
	h := newHashTable()
	for i := 0; i < 100; i++ {
		h.set(fmt.Sprintf("key-%d", i), &Value{Type: TypeString})
	}
	require.Equal(t, 100, h.count())

	// every key must still be reachable regardless of whether a rehash is
	// in progress (spec.md §8 invariant 6).
	for i := 0; i < 100; i++ {
		_, ok := h.lookup(fmt.Sprintf("key-%d", i))
		require.True(t, ok, "key-%d missing", i)
	}
}

func TestHashTableLookupStableDuringRehash(t *testing.T) {
	h := newHashTable()
	for i := 0; i < 50; i++ {
		h.set(fmt.Sprintf("k%d", i), &Value{Type: TypeString})
	}
	h.beginResize(nextPow2(h.main.used * 4))
	require.True(t, h.isRehashing())

	for i := 0; i < 50; i++ {
		_, ok := h.lookup(fmt.Sprintf("k%d", i))
		require.True(t, ok)
	}

	// drive the migration to completion one step at a time and check
	// lookups remain stable throughout.
	for h.isRehashing() {
		h.rehashStep(1)
		for i := 0; i < 50; i++ {
			_, ok := h.lookup(fmt.Sprintf("k%d", i))
			require.True(t, ok)
		}
	}
	require.False(t, h.isRehashing())
}

func TestHashTableShrink(t *testing.T) {
	h := newHashTable()
	for i := 0; i < 200; i++ {
		h.set(fmt.Sprintf("k%d", i), &Value{Type: TypeString})
	}
	for !h.isRehashing() && h.needsGrow() {
		h.beginResize(nextPow2(h.main.used))
	}
	for h.isRehashing() {
		h.rehashStep(4)
	}
	for i := 0; i < 199; i++ {
		h.delete(fmt.Sprintf("k%d", i))
	}
	require.True(t, h.needsShrink())
}

func TestCursorIterateVisitsEveryKey(t *testing.T) {
	h := newHashTable()
	want := map[string]bool{}
	for i := 0; i < 37; i++ {
		k := fmt.Sprintf("item-%d", i)
		want[k] = true
		h.set(k, &Value{Type: TypeString})
	}
	seen := map[string]bool{}
	var cursor uint64
	for {
		var entries []*htEntry
		cursor, entries = h.cursorIterate(cursor, 5)
		for _, e := range entries {
			seen[e.key] = true
		}
		if cursor == 0 {
			break
		}
	}
	require.Equal(t, want, seen)
}
