package store

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// ValueType distinguishes the two data types this core supports, per
// spec.md §1 Non-goals ("any non-string / non-hash data types").
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeHash
)

// Encoding records how a value's payload is physically represented, the
// way Redis's `OBJECT ENCODING` does. Compact-list hashes convert to
// hash-table hashes one-way as they grow (spec.md §4.3); large string
// payloads may additionally be transparently compressed (SPEC_FULL.md §3).
type Encoding uint8

const (
	EncodingInt            Encoding = iota // small integer, embedded in the value
	EncodingEmbeddedString                 // short string stored inline
	EncodingRawString                      // string stored as its own buffer
	EncodingCompressedRaw                  // lz4-compressed string, inflated on read
	EncodingHashCompact                    // small hash, linear slice of field/value pairs
	EncodingHashTable                      // large hash, backed by a Go map
)

// HashConversionThresholds controls when a compact-list hash converts to a
// hash-table encoding. Conversion is eager and one-way (spec.md §4.3).
type HashConversionThresholds struct {
	MaxEntries  int
	MaxValueLen int
}

var DefaultHashThresholds = HashConversionThresholds{MaxEntries: 128, MaxValueLen: 64}

// CompressionPolicy gates EncodingCompressedRaw: a raw string payload is
// stored compressed only when its compressed size is below this fraction
// of the original AND the original is at least MinSize bytes.
type CompressionPolicy struct {
	Enabled  bool
	MinSize  int
	MaxRatio float64 // compressed must be < MaxRatio * original to be worth it
}

var DefaultCompressionPolicy = CompressionPolicy{Enabled: false, MinSize: 1024, MaxRatio: 0.9}

// Value is the cache's value object. Unlike the teacher's reference-counted
// shared Scmer values, a Go Value is owned by exactly one shard slot at a
// time and moved, not shared, on replacement — per SPEC_FULL.md Design
// Notes ("user values use owned buffers with move semantics, not shared
// ownership"); the Go garbage collector is the refcount mechanism the
// original hand-rolled in C.
type Value struct {
	Type     ValueType
	Encoding Encoding

	str      []byte // raw, embedded or compressed payload for TypeString
	strLen   int    // original (uncompressed) length, for CompressedRaw
	hashList []hashField
	hashMap  map[string][]byte

	ExpireAt int64 // unix millis; 0 means no expiry
}

type hashField struct {
	field string
	value []byte
}

// NewStringValue builds a string value, applying compression if policy and
// size warrant it.
func NewStringValue(b []byte, policy CompressionPolicy) *Value {
	v := &Value{Type: TypeString}
	if policy.Enabled && len(b) >= policy.MinSize {
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(b); err == nil && w.Close() == nil {
			if compressed := buf.Bytes(); float64(len(compressed)) < float64(len(b))*policy.MaxRatio {
				v.Encoding = EncodingCompressedRaw
				v.str = append([]byte(nil), compressed...)
				v.strLen = len(b)
				return v
			}
		}
	}
	if len(b) <= 44 {
		v.Encoding = EncodingEmbeddedString
	} else {
		v.Encoding = EncodingRawString
	}
	v.str = append([]byte(nil), b...)
	v.strLen = len(b)
	return v
}

// Bytes returns the decoded string payload, inflating if compressed.
func (v *Value) Bytes() ([]byte, error) {
	if v.Type != TypeString {
		return nil, ErrWrongType
	}
	if v.Encoding != EncodingCompressedRaw {
		return v.str, nil
	}
	r := lz4.NewReader(bytes.NewReader(v.str))
	out := make([]byte, v.strLen)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// Len reports the logical (uncompressed) length of a string value.
func (v *Value) Len() int {
	if v.Type != TypeString {
		return 0
	}
	return v.strLen
}

// NewHashValue creates an empty hash value, compact-list encoded.
func NewHashValue() *Value {
	return &Value{Type: TypeHash, Encoding: EncodingHashCompact}
}

// HSet sets a field, converting encoding if thresholds are exceeded, and
// reports whether the field was newly created.
func (v *Value) HSet(field string, value []byte, thresholds HashConversionThresholds) bool {
	if v.Type != TypeHash {
		panic("HSet on non-hash value")
	}
	if v.Encoding == EncodingHashTable {
		_, existed := v.hashMap[field]
		v.hashMap[field] = value
		return !existed
	}
	for i := range v.hashList {
		if v.hashList[i].field == field {
			v.hashList[i].value = value
			if len(value) > thresholds.MaxValueLen {
				v.convertToHashTable()
			}
			return false
		}
	}
	v.hashList = append(v.hashList, hashField{field: field, value: value})
	if len(v.hashList) > thresholds.MaxEntries || len(value) > thresholds.MaxValueLen {
		v.convertToHashTable()
	}
	return true
}

func (v *Value) convertToHashTable() {
	m := make(map[string][]byte, len(v.hashList)*2)
	for _, f := range v.hashList {
		m[f.field] = f.value
	}
	v.hashMap = m
	v.hashList = nil
	v.Encoding = EncodingHashTable
}

func (v *Value) HGet(field string) ([]byte, bool) {
	if v.Type != TypeHash {
		panic("HGet on non-hash value")
	}
	if v.Encoding == EncodingHashTable {
		b, ok := v.hashMap[field]
		return b, ok
	}
	for _, f := range v.hashList {
		if f.field == field {
			return f.value, true
		}
	}
	return nil, false
}

func (v *Value) HDel(field string) bool {
	if v.Type != TypeHash {
		panic("HDel on non-hash value")
	}
	if v.Encoding == EncodingHashTable {
		if _, ok := v.hashMap[field]; !ok {
			return false
		}
		delete(v.hashMap, field)
		return true
	}
	for i, f := range v.hashList {
		if f.field == field {
			v.hashList = append(v.hashList[:i], v.hashList[i+1:]...)
			return true
		}
	}
	return false
}

func (v *Value) HLen() int {
	if v.Encoding == EncodingHashTable {
		return len(v.hashMap)
	}
	return len(v.hashList)
}

// HEach calls fn for every field/value pair, in no particular order for
// hash-table encoding and insertion order for compact-list encoding.
func (v *Value) HEach(fn func(field string, value []byte)) {
	if v.Encoding == EncodingHashTable {
		for k, val := range v.hashMap {
			fn(k, val)
		}
		return
	}
	for _, f := range v.hashList {
		fn(f.field, f.value)
	}
}
