// Package reflines reads lines from a stream with a hard limit on line length,
// reusing one buffer for every line the caller does not hold on to.
package reflines

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultMaxCapacity is the max capacity used by NewDefault.
const DefaultMaxCapacity = 64 * 1024

// OverflowPolicy decides what happens to the rest of a line after it was
// returned incomplete.
type OverflowPolicy int

const (
	// OverflowContinue returns the rest of an over-long line as further
	// incomplete chunks, up to and including the chunk that ends the line.
	OverflowContinue OverflowPolicy = iota

	// OverflowDiscard drops the rest of an over-long line and resumes with the
	// line after it.
	OverflowDiscard
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowContinue:
		return "continue"
	case OverflowDiscard:
		return "discard"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", int(p))
}

// ParseOverflowPolicy parses the String form of an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "continue", "":
		return OverflowContinue, nil
	case "discard":
		return OverflowDiscard, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q", s)
}

// Options are options for an Iterator
type Options struct {
	Overflow OverflowPolicy
	Logger   logrus.FieldLogger
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		o = new(Options)
	}
	if o.Logger != nil {
		return o
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Options{
		Overflow: o.Overflow,
		Logger:   logger,
	}
}

// Stats counts what an Iterator has done so far.
type Stats struct {
	// Lines is the number of complete lines returned.
	Lines int64
	// Incomplete is the number of chunks returned with ErrIncomplete.
	Incomplete int64
	// Bytes is the total length of content returned.
	Bytes int64
	// Allocations is the number of line buffers allocated.
	Allocations int64
	// Reuses is the number of times the previous line buffer was reused.
	Reuses int64
}

type state int

const (
	stateActive state = iota
	stateEnded
	stateErrored
)

// Iterator returns the lines of a reader one at a time. It is not safe for
// concurrent use.
type Iterator struct {
	opts        *Options
	log         logrus.FieldLogger
	debug       bool
	scanner     *lineScanner
	buf         *sharedBuffer
	maxCapacity int
	state       state
	overflow    bool
	lineNum     int64
	stats       Stats
}

// New returns an Iterator over the lines of r. No line's content will be
// longer than maxCapacity bytes. A maxCapacity below utf8.UTFMax can be too
// small for a multi-byte rune, in which case Next returns an *EncodingError.
func New(r io.Reader, maxCapacity int, opts *Options) (*Iterator, error) {
	if maxCapacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, maxCapacity)
	}
	opts = opts.withDefaults()
	return &Iterator{
		opts:        opts,
		log:         opts.Logger,
		debug:       debugEnabled(opts.Logger),
		scanner:     newLineScanner(r, maxCapacity),
		maxCapacity: maxCapacity,
	}, nil
}

// NewDefault returns an Iterator with DefaultMaxCapacity and default options.
func NewDefault(r io.Reader) *Iterator {
	it, err := New(r, DefaultMaxCapacity, nil)
	if err != nil {
		panic(err)
	}
	return it
}

// MaxCapacity returns the longest content a returned Line can have.
func (it *Iterator) MaxCapacity() int {
	return it.maxCapacity
}

// LineNumber returns the 1-based number of the line the last returned chunk
// belongs to. Chunks of one over-long line share a number.
func (it *Iterator) LineNumber() int64 {
	return it.lineNum
}

// Stats returns the iterator's counters.
func (it *Iterator) Stats() Stats {
	return it.stats
}

// Next returns the next line.
//
// A complete line is returned with a nil error and without its "\n" or "\r\n".
// A chunk of a line longer than the max capacity is returned along with
// ErrIncomplete. An invalid UTF-8 line returns an *EncodingError and a failing
// reader returns the reader's error; both end the iteration. error is io.EOF at
// the end.
func (it *Iterator) Next() (*Line, error) {
	if it.state != stateActive {
		return nil, io.EOF
	}
	if it.overflow && it.opts.Overflow == OverflowDiscard {
		it.scanner.skip()
		it.overflow = false
		if it.debug {
			it.log.WithField("line", it.lineNum).Debug("discarded rest of over-long line")
		}
	}
	if !it.overflow {
		it.lineNum++
	}

	res := it.scanner.scan()
	switch res {
	case scanEnd:
		it.state = stateEnded
		return nil, io.EOF
	case scanErr:
		it.state = stateErrored
		return nil, it.scanner.error()
	}

	content := it.scanner.bytes()
	if !utf8.Valid(content) {
		it.state = stateErrored
		return nil, &EncodingError{
			Line:   it.lineNum,
			Offset: it.scanner.offset,
		}
	}

	buf := it.acquire(len(content))
	buf.data = append(buf.data, content...)
	buf.retain()
	line := &Line{buf: buf}
	it.stats.Bytes += int64(len(content))

	incomplete := it.overflow || res == scanFull
	if it.debug && res == scanFull && !it.overflow {
		it.log.WithFields(logrus.Fields{
			"line":   it.lineNum,
			"offset": it.scanner.offset,
		}).Debug("line exceeds max capacity")
	}
	it.overflow = res == scanFull
	if incomplete {
		it.stats.Incomplete++
		return line, ErrIncomplete
	}
	it.stats.Lines++
	return line, nil
}

// acquire returns the buffer to write the next line into. The current buffer
// is reused when no Line refers to it anymore.
func (it *Iterator) acquire(size int) *sharedBuffer {
	if it.buf != nil && it.buf.exclusive() {
		it.buf.data = it.buf.data[:0]
		it.stats.Reuses++
		if it.debug {
			it.log.Debug("reusing line buffer")
		}
		return it.buf
	}
	if it.buf != nil {
		it.buf.release()
	}
	it.buf = newSharedBuffer(size)
	it.stats.Allocations++
	if it.debug {
		it.log.WithField("size", size).Debug("allocating line buffer")
	}
	return it.buf
}

// debugEnabled reports whether l could write debug entries. Unknown loggers
// are assumed to.
func debugEnabled(l logrus.FieldLogger) bool {
	switch l := l.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return true
}
