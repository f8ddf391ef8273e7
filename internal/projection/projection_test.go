package projection

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDecodeCategoryOrTag(t *testing.T) {
	doc := map[string]any{
		"category": map[string]any{
			"sports": map[string]any{
				"ts": int64(1700000000),
				"weighted": []any{
					map[string]any{"tag": "football", "weight": 0.123456},
					map[string]any{"tag": "tennis", "weight": 1.0},
				},
			},
		},
	}
	ts, weighted := DecodeCategoryOrTag(doc, "category", "sports", zerolog.Nop())
	require.Equal(t, int64(1700000000), ts)
	require.Len(t, weighted, 2)
	require.Equal(t, "football", weighted[0].Tag)

	out := BuildCategoryOrTagJSON(ts, weighted)
	require.JSONEq(t, `{"ts":1700000000,"weighted":[{"tag":"football","weight":0.123},{"tag":"tennis","weight":1.0}]}`, string(out))
}

func TestDecodeCategoryOrTagMissingYieldsZeroValue(t *testing.T) {
	ts, weighted := DecodeCategoryOrTag(map[string]any{}, "category", "sports", zerolog.Nop())
	require.Equal(t, int64(0), ts)
	require.Empty(t, weighted)
	require.JSONEq(t, `{"ts":0,"weighted":[]}`, string(BuildCategoryOrTagJSON(ts, weighted)))
}

func TestDecodeStatMissingFieldsFail(t *testing.T) {
	_, _, ok := DecodeStat(map[string]any{"ts": int64(1)}, "category_stat")
	require.False(t, ok)

	_, _, ok = DecodeStat(map[string]any{"category_stat": map[string]any{}}, "category_stat")
	require.False(t, ok)
}

func TestDecodeStatRenamesRootToData(t *testing.T) {
	ts, data, ok := DecodeStat(map[string]any{"ts": int64(42), "category_stat": map[string]any{"a": 1}}, "category_stat")
	require.True(t, ok)
	out, err := BuildStatJSON(ts, data)
	require.NoError(t, err)
	require.Equal(t, `{"ts":42,"data":{"a":1}}`, string(out))
}
