package reflines

import "io"

// Scanner wraps an Iterator in a Scan/Bytes/Err loop. Each Scan releases the
// previous line, so a Scanner reads every line into the same buffer.
type Scanner struct {
	it         *Iterator
	validators []Validator
	line       *Line
	incomplete bool
	err        error
}

// NewScanner returns a Scanner over the lines of r. Lines and incomplete
// chunks that fail any of validators are skipped.
func NewScanner(r io.Reader, maxCapacity int, opts *Options, validators ...Validator) (*Scanner, error) {
	it, err := New(r, maxCapacity, opts)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		it:         it,
		validators: validators,
	}, nil
}

func (s *Scanner) validateLine(line []byte) bool {
	for _, validator := range s.validators {
		ok := validator(line)
		if !ok {
			return false
		}
	}
	return true
}

// Scan advances to the next line. It returns false at the end of the input or
// on an encoding or read error.
func (s *Scanner) Scan() bool {
	s.line.Release()
	s.line = nil
	s.incomplete = false
	if s.err != nil {
		return false
	}
	for {
		line, err := s.it.Next()
		switch Classify(err) {
		case KindOK, KindIncomplete:
		default:
			s.err = err
			return false
		}
		if !s.validateLine(line.Bytes()) {
			line.Release()
			continue
		}
		s.line = line
		s.incomplete = err != nil
		return true
	}
}

// Bytes returns the current line. It is only valid until the next Scan.
func (s *Scanner) Bytes() []byte {
	return s.line.Bytes()
}

// Line returns a handle on the current line that stays valid after the next
// Scan. The caller must release it.
func (s *Scanner) Line() *Line {
	return s.line.Retain()
}

// Incomplete reports whether the current line is a chunk of a line longer
// than the max capacity.
func (s *Scanner) Incomplete() bool {
	return s.incomplete
}

// LineNumber returns the 1-based number of the current line.
func (s *Scanner) LineNumber() int64 {
	return s.it.LineNumber()
}

// Err returns the scanner's error
func (s *Scanner) Err() error {
	err := s.err
	if err == io.EOF {
		err = nil
	}
	return err
}

// Stats returns the underlying Iterator's counters.
func (s *Scanner) Stats() Stats {
	return s.it.Stats()
}
