package reflines

import (
	"bytes"
	"io"
	"math"
	"unicode/utf8"
)

type scanResult int

const (
	scanLine scanResult = iota // delimiter found
	scanFull                   // max bytes buffered without a delimiter
	scanTail                   // unterminated remainder at end of stream
	scanEnd
	scanErr
)

type lineScanner struct {
	br  byteReader
	max int
	pos int

	// offset in the stream of the first byte of line
	offset int64
	line   []byte
}

func newLineScanner(r io.Reader, max int) *lineScanner {
	// room for max content bytes and "\r\n"
	limit := max + 2
	if limit < max {
		limit = math.MaxInt
	}
	return &lineScanner{
		br:  newByteReader(r, limit),
		max: max,
	}
}

func (s *lineScanner) advance() {
	s.br.release(s.pos)
	s.offset += int64(s.pos)
	s.pos = 0
	s.line = nil
}

func (s *lineScanner) scan() scanResult {
	s.advance()
	searched := 0
	for {
		win := s.br.window()
		idx := bytes.IndexByte(win[searched:], '\n')
		if idx >= 0 {
			idx += searched
			end := idx
			if end > 0 && win[end-1] == '\r' {
				end--
			}
			if end > s.max {
				return s.cut(win)
			}
			s.line = win[:end]
			s.pos = idx + 1
			return scanLine
		}
		searched = len(win)

		// Without a delimiter in the window, more than max bytes can only
		// still be a line if the byte after max is the '\r' of a "\r\n".
		if over := len(win) - 1; over > s.max || (over == s.max && win[s.max] != '\r') {
			return s.cut(win)
		}
		if s.br.extend() > 0 {
			continue
		}
		if s.br.err != io.EOF {
			return scanErr
		}
		if len(win) == 0 {
			return scanEnd
		}
		if len(win) >= s.max {
			return s.cut(win)
		}
		s.line = win
		s.pos = len(win)
		return scanTail
	}
}

// cut takes the first max bytes of win as the current line. When that would
// split a multi-byte rune the cut moves back to the rune's first byte.
func (s *lineScanner) cut(win []byte) scanResult {
	n := s.max
	for i := 1; i < utf8.UTFMax && i <= n; i++ {
		if !utf8.RuneStart(win[n-i]) {
			continue
		}
		if !utf8.FullRune(win[n-i:n]) && n-i > 0 {
			n -= i
		}
		break
	}
	s.line = win[:n]
	s.pos = n
	return scanFull
}

// skip drops input up to and including the next '\n'. It stops early when
// the stream ends or fails; the following scan reports that.
func (s *lineScanner) skip() {
	s.advance()
	for {
		win := s.br.window()
		if idx := bytes.IndexByte(win, '\n'); idx >= 0 {
			s.pos = idx + 1
			return
		}
		s.pos = len(win)
		s.advance()
		if s.br.extend() == 0 {
			return
		}
	}
}

func (s *lineScanner) bytes() []byte {
	return s.line
}

func (s *lineScanner) error() error {
	return s.br.err
}
