package reflines

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// Validator is a function that returns true when a line passes validation
type Validator func(line []byte) bool

var whitespace = [256]bool{
	' ':  true,
	'\r': true,
	'\t': true,
}

// ValidateAll returns a Validator that passes lines accepted by every one of
// validators.
func ValidateAll(validators ...Validator) Validator {
	return func(line []byte) bool {
		for _, validator := range validators {
			if !validator(line) {
				return false
			}
		}
		return true
	}
}

// ValidateNotEmpty validate that line contains at least one non-whitespace character
func ValidateNotEmpty() Validator {
	return func(line []byte) bool {
		for _, b := range line {
			if !whitespace[b] {
				return true
			}
		}
		return false
	}
}

// ValidateIsJSONObject returns true if the first non-whitespace byte is '{'
func ValidateIsJSONObject() Validator {
	return func(line []byte) bool {
		for _, b := range line {
			if whitespace[b] {
				continue
			}
			return b == '{'
		}
		return false
	}
}

// ValidateJSON returns true if line is a single valid json value
func ValidateJSON() Validator {
	return func(line []byte) bool {
		iter := jsoniter.ConfigFastest.BorrowIterator(line)
		defer jsoniter.ConfigFastest.ReturnIterator(iter)
		iter.Skip()
		return atEnd(iter)
	}
}

// atEnd reports whether iter read a value without error and only whitespace
// is left after it.
func atEnd(iter *jsoniter.Iterator) bool {
	if iter.Error != nil {
		return false
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return false
	}
	return iter.Error == io.EOF
}

// ValidateJSONFields returns true if line is a json object whose top-level
// fields named in want hold the wanted string values.
func ValidateJSONFields(want map[string]string) Validator {
	return func(line []byte) bool {
		iter := jsoniter.ConfigFastest.BorrowIterator(line)
		defer jsoniter.ConfigFastest.ReturnIterator(iter)
		seen := make(map[string]bool, len(want))
		ok := iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
			val, wanted := want[field]
			if !wanted {
				iter.Skip()
				return true
			}
			if iter.WhatIsNext() != jsoniter.StringValue {
				return false
			}
			if iter.ReadString() != val {
				return false
			}
			seen[field] = true
			return true
		})
		return ok && len(seen) == len(want) && atEnd(iter)
	}
}
