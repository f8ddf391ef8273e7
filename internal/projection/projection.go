// Package projection decodes documents fetched from internal/docstore into
// the typed category/tag/stat shapes spec.md §4.8 describes, and builds
// the JSON blobs the resolver installs into the cache. Ground:
// _examples/original_source/src/asynctask.cpp's ExecMongoTask (exact JSON
// shaping, including ≤3-decimal-place weights and the stat-root rename to
// "data") and src/common/mongo_cli.h (document field names: category, tag,
// category_stat, tag_stat, ts).
package projection

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/rs/zerolog"
)

// WeightedEntry is one element of a category/tag's weighted list.
type WeightedEntry struct {
	Tag    string
	Weight float64
}

// Empty is the canonical "no document" / "invalid document" reply,
// spec.md §4.8: "If no document, emit {}."
var Empty = []byte("{}")

// DecodeCategoryOrTag walks doc[root][key] and extracts {ts, weighted}.
// Tolerant per spec.md §4.8: a missing root, missing key, or malformed
// sub-value yields the zero value (ts=0, no weights) rather than an
// error — mirroring the original's default-constructed CategoryInfo when
// the map lookup misses.
func DecodeCategoryOrTag(doc map[string]any, root, key string, log zerolog.Logger) (ts int64, weighted []WeightedEntry) {
	rootVal, ok := doc[root]
	if !ok {
		return 0, nil
	}
	rootMap, ok := rootVal.(map[string]any)
	if !ok {
		log.Warn().Str("root", root).Msg("projection: root field has unexpected type")
		return 0, nil
	}
	entry, ok := rootMap[key]
	if !ok {
		return 0, nil
	}
	entryMap, ok := entry.(map[string]any)
	if !ok {
		log.Warn().Str("root", root).Str("key", key).Msg("projection: entry has unexpected type")
		return 0, nil
	}
	ts = asInt64(entryMap["ts"])
	rawWeighted, _ := entryMap["weighted"].([]any)
	for _, w := range rawWeighted {
		wm, ok := w.(map[string]any)
		if !ok {
			continue
		}
		tag, _ := wm["tag"].(string)
		weighted = append(weighted, WeightedEntry{Tag: tag, Weight: asFloat64(wm["weight"])})
	}
	return ts, weighted
}

// BuildCategoryOrTagJSON renders {"ts":…,"weighted":[{"tag":…,"weight":…}]}
// with weights rounded to at most 3 decimal places (see formatDecimal3).
func BuildCategoryOrTagJSON(ts int64, weighted []WeightedEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"ts":`)
	buf.WriteString(strconv.FormatInt(ts, 10))
	buf.WriteString(`,"weighted":[`)
	for i, w := range weighted {
		if i > 0 {
			buf.WriteByte(',')
		}
		tagBytes, _ := json.Marshal(w.Tag)
		buf.WriteString(`{"tag":`)
		buf.Write(tagBytes)
		buf.WriteString(`,"weight":`)
		buf.WriteString(formatDecimal3(w.Weight))
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// DecodeStat extracts {ts, <statRoot>} from doc. ok is false if ts is
// missing/not-numeric or statRoot is absent — the two conditions spec.md
// §4.8 calls out explicitly ("missing ts or stat root").
func DecodeStat(doc map[string]any, statRoot string) (ts int64, data any, ok bool) {
	rawTS, hasTS := doc["ts"]
	if !hasTS {
		return 0, nil, false
	}
	data, hasRoot := doc[statRoot]
	if !hasRoot {
		return 0, nil, false
	}
	return asInt64(rawTS), data, true
}

// BuildStatJSON renders {"ts":…,"data":…}, the stat-root-renamed-to-"data"
// shape from spec.md §4.8. Hand-built like BuildCategoryOrTagJSON, with ts
// before data, rather than json.Marshal-ing a map (which would reorder the
// keys alphabetically — "data" before "ts").
func BuildStatJSON(ts int64, data any) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"ts":`)
	buf.WriteString(strconv.FormatInt(ts, 10))
	buf.WriteString(`,"data":`)
	buf.Write(dataBytes)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// formatDecimal3 rounds to 3 decimal places and trims trailing zeros, so
// it never pads; a whole number keeps one ".0".
func formatDecimal3(v float64) string {
	rounded := math.Round(v*1000) / 1000
	s := strconv.FormatFloat(rounded, 'f', 3, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s += "0"
	}
	return s
}
