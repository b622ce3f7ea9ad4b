package reflines

import "io"

const (
	newBufferSize            = 8192
	maxConsecutiveEmptyReads = 100
)

// byteReader keeps a window over data read from r. The backing slice grows on
// demand but never past limit bytes.
type byteReader struct {
	r     io.Reader
	data  []byte
	off   int
	limit int
	err   error
}

func newByteReader(r io.Reader, limit int) byteReader {
	size := newBufferSize
	if limit < size {
		size = limit
	}
	return byteReader{
		r:     r,
		data:  make([]byte, 0, size),
		limit: limit,
	}
}

func (br *byteReader) window() []byte {
	return br.data[br.off:]
}

// release drops the first n bytes of the window.
func (br *byteReader) release(n int) {
	br.off += n
	if br.off >= len(br.data) {
		br.data = br.data[:0]
		br.off = 0
	}
}

// extend reads once from r and returns the number of bytes added to the
// window. It returns 0 when r has failed or the window is already limit bytes
// long.
func (br *byteReader) extend() int {
	if br.err != nil {
		return 0
	}
	if len(br.data) == cap(br.data) && !br.makeRoom() {
		return 0
	}
	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		n, err := br.r.Read(br.data[len(br.data):cap(br.data)])
		if n < 0 || len(br.data)+n > cap(br.data) {
			br.err = errInvalidRead
			return 0
		}
		br.data = br.data[:len(br.data)+n]
		if err != nil {
			br.err = err
			return n
		}
		if n > 0 {
			return n
		}
	}
	br.err = io.ErrNoProgress
	return 0
}

func (br *byteReader) makeRoom() bool {
	if br.off > 0 {
		n := copy(br.data, br.data[br.off:])
		br.data = br.data[:n]
		br.off = 0
		return true
	}
	if cap(br.data) >= br.limit {
		return false
	}
	size := cap(br.data) * 2
	if size > br.limit || size < cap(br.data) {
		size = br.limit
	}
	data := make([]byte, len(br.data), size)
	copy(data, br.data)
	br.data = data
	return true
}
