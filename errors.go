package reflines

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidCapacity is returned by New when max capacity is not positive.
	ErrInvalidCapacity = errors.New("reflines: max capacity must be greater than zero")

	// ErrIncomplete is returned along with a Line when max capacity was reached
	// before a delimiter.
	ErrIncomplete = errors.New("reflines: line exceeds max capacity")

	// ErrEncoding matches any *EncodingError.
	ErrEncoding = errors.New("reflines: line is not valid UTF-8")

	errInvalidRead = errors.New("reflines: reader returned invalid count from Read")
)

// EncodingError reports a line that is not valid UTF-8.
type EncodingError struct {
	// Line is the 1-based number of the line.
	Line int64
	// Offset is the position of the line's first byte in the stream.
	Offset int64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("reflines: line %d at offset %d is not valid UTF-8", e.Line, e.Offset)
}

// Is makes errors.Is(err, ErrEncoding) true.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// Kind is the outcome of a call to Iterator.Next.
type Kind int

// Kinds returned by Classify.
const (
	KindOK Kind = iota
	KindIncomplete
	KindEncoding
	KindIO
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindIncomplete:
		return "incomplete"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	case KindEnd:
		return "end"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Classify returns the Kind of an error returned by Iterator.Next. Any error
// that is not io.EOF, ErrIncomplete or ErrEncoding came from the reader.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrIncomplete):
		return KindIncomplete
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case err == io.EOF:
		return KindEnd
	}
	return KindIO
}
