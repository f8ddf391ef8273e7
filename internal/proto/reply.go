package proto

import "strconv"

// The reply primitives from spec.md §4.2/§6. Each Append* writes directly
// onto a caller-owned output buffer, avoiding the per-reply allocation the
// teacher's interned singleton replies exist to dodge (Design Notes §9) —
// here we get the same effect idiomatically via append-into-slice rather
// than reference-counted shared objects.

func AppendStatus(buf []byte, status string) []byte {
	buf = append(buf, '+')
	buf = append(buf, status...)
	return append(buf, '\r', '\n')
}

func AppendError(buf []byte, msg string) []byte {
	buf = append(buf, '-')
	buf = append(buf, msg...)
	return append(buf, '\r', '\n')
}

func AppendInteger(buf []byte, n int64) []byte {
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, '\r', '\n')
}

// AppendBulk writes a bulk string reply, or $-1\r\n if b is nil.
func AppendBulk(buf []byte, b []byte) []byte {
	if b == nil {
		return append(buf, '$', '-', '1', '\r', '\n')
	}
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(b)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, b...)
	return append(buf, '\r', '\n')
}

// NilBulk and NilMultiBulk are the two null reply shapes spec.md §4.2
// names explicitly.
func AppendNilBulk(buf []byte) []byte      { return append(buf, '$', '-', '1', '\r', '\n') }
func AppendNilMultiBulk(buf []byte) []byte { return append(buf, '*', '-', '1', '\r', '\n') }

func AppendMultiBulkHeader(buf []byte, n int) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(n), 10)
	return append(buf, '\r', '\n')
}

// DeferredMultiBulk lets a handler assemble a multi-bulk reply whose
// element count isn't known until its children are built — spec.md §4.2
// calls this out explicitly ("reserve a slot, fill children, then
// back-patch the element count"). Go has no in-place buffer patching
// ergonomics, so this builds children into a side buffer and prepends the
// header once the count is final, which is observably identical on the
// wire.
type DeferredMultiBulk struct {
	children [][]byte
}

func NewDeferredMultiBulk() *DeferredMultiBulk { return &DeferredMultiBulk{} }

// Add appends one fully-encoded child reply (itself possibly a nested
// multi-bulk).
func (d *DeferredMultiBulk) Add(child []byte) { d.children = append(d.children, child) }

// Len reports how many children have been added so far.
func (d *DeferredMultiBulk) Len() int { return len(d.children) }

// Finish renders the header followed by every child, onto buf.
func (d *DeferredMultiBulk) Finish(buf []byte) []byte {
	buf = AppendMultiBulkHeader(buf, len(d.children))
	for _, c := range d.children {
		buf = append(buf, c...)
	}
	return buf
}
