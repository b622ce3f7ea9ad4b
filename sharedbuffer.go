package reflines

import "sync/atomic"

// sharedBuffer holds the content of one line. refs counts the Iterator's
// reference plus one per outstanding Line. data may only be written while
// refs is 1.
type sharedBuffer struct {
	data []byte
	refs int32
}

func newSharedBuffer(size int) *sharedBuffer {
	return &sharedBuffer{
		data: make([]byte, 0, size),
		refs: 1,
	}
}

func (b *sharedBuffer) retain() {
	atomic.AddInt32(&b.refs, 1)
}

func (b *sharedBuffer) release() {
	atomic.AddInt32(&b.refs, -1)
}

func (b *sharedBuffer) exclusive() bool {
	return atomic.LoadInt32(&b.refs) == 1
}

// Line is a read-only handle on the content of a line returned by
// Iterator.Next.
//
// The content stays valid until Release is called. Releasing a Line before the
// next call to Next lets the Iterator reuse its buffer instead of allocating a
// new one. A Line that is never released is still safe; it just costs an
// allocation.
type Line struct {
	buf *sharedBuffer
}

// Bytes returns the line's content without the delimiter. The returned slice
// must not be modified. It is nil after Release.
func (l *Line) Bytes() []byte {
	if l == nil || l.buf == nil {
		return nil
	}
	return l.buf.data
}

// String returns a copy of the line's content.
func (l *Line) String() string {
	return string(l.Bytes())
}

// Len returns the length of the line's content in bytes.
func (l *Line) Len() int {
	return len(l.Bytes())
}

// Retain returns a new handle on the same content. Each handle must be
// released on its own.
func (l *Line) Retain() *Line {
	if l == nil || l.buf == nil {
		return nil
	}
	l.buf.retain()
	return &Line{buf: l.buf}
}

// Release gives up this handle's claim on the content. Calling it more than
// once is a no-op.
func (l *Line) Release() {
	if l == nil || l.buf == nil {
		return
	}
	l.buf.release()
	l.buf = nil
}
