package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineParsing(t *testing.T) {
	q := NewQueryBuffer(0)
	require.NoError(t, q.Append([]byte("SET foo bar\r\n")))
	args, ok, err := q.TryParse()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"SET", "foo", "bar"}, toStrings(args))
}

func TestMultiBulkParsing(t *testing.T) {
	q := NewQueryBuffer(0)
	require.NoError(t, q.Append([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")))
	args, ok, err := q.TryParse()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"SET", "foo", "bar"}, toStrings(args))
}

func TestMultiBulkResumesAcrossPartialReads(t *testing.T) {
	q := NewQueryBuffer(0)
	require.NoError(t, q.Append([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfo")))
	_, ok, err := q.TryParse()
	require.NoError(t, err)
	require.False(t, ok, "partial bulk body must not parse yet")

	require.NoError(t, q.Append([]byte("o\r\n")))
	args, ok, err := q.TryParse()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"GET", "foo"}, toStrings(args))
}

func TestOversizedBulkIsRejected(t *testing.T) {
	q := NewQueryBuffer(16)
	require.NoError(t, q.Append([]byte("*1\r\n$100\r\n")))
	_, _, err := q.TryParse()
	require.ErrorIs(t, err, ErrTooBig)
}

func TestDeferredMultiBulk(t *testing.T) {
	d := NewDeferredMultiBulk()
	d.Add(AppendBulk(nil, []byte("a")))
	d.Add(AppendInteger(nil, 42))
	out := d.Finish(nil)
	require.Equal(t, "*2\r\n$1\r\na\r\n:42\r\n", string(out))
}

func TestReplyPrimitives(t *testing.T) {
	require.Equal(t, "+OK\r\n", string(AppendStatus(nil, "OK")))
	require.Equal(t, "-ERR boom\r\n", string(AppendError(nil, "ERR boom")))
	require.Equal(t, ":7\r\n", string(AppendInteger(nil, 7)))
	require.Equal(t, "$-1\r\n", string(AppendBulk(nil, nil)))
	require.Equal(t, "$3\r\nbar\r\n", string(AppendBulk(nil, []byte("bar"))))
	require.Equal(t, "*-1\r\n", string(AppendNilMultiBulk(nil)))
}

func toStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}
