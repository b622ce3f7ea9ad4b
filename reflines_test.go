package reflines

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type result struct {
	kind Kind
	text string
}

func ok(text string) result {
	return result{kind: KindOK, text: text}
}

func incomplete(text string) result {
	return result{kind: KindIncomplete, text: text}
}

func collect(t *testing.T, r io.Reader, maxCapacity int, opts *Options) ([]result, error) {
	t.Helper()
	it, err := New(r, maxCapacity, opts)
	require.NoError(t, err)
	var got []result
	for {
		line, err := it.Next()
		kind := Classify(err)
		switch kind {
		case KindEnd:
			return got, nil
		case KindOK, KindIncomplete:
			require.NotNil(t, line)
			require.LessOrEqual(t, line.Len(), maxCapacity)
			got = append(got, result{kind: kind, text: line.String()})
			line.Release()
		default:
			require.Nil(t, line)
			return got, err
		}
	}
}

func TestIterator(t *testing.T) {
	for _, td := range []struct {
		name  string
		input string
		max   int
		want  []result
	}{
		{name: "empty", input: "", max: 8},
		{name: "whitespace line crlf", input: " \r\n", max: 8, want: []result{ok(" ")}},
		{name: "whitespace line lf", input: " \n", max: 8, want: []result{ok(" ")}},
		{name: "whitespace last line crlf", input: "\r\n ", max: 8, want: []result{ok(""), ok(" ")}},
		{name: "whitespace last line lf", input: "\n ", max: 8, want: []result{ok(""), ok(" ")}},
		{name: "double linebreak crlf", input: "\r\n\r\n", max: 8, want: []result{ok(""), ok("")}},
		{name: "double linebreak lf", input: "\n\n", max: 8, want: []result{ok(""), ok("")}},
		{name: "trailing a", input: "\r\na", max: 8, want: []result{ok(""), ok("a")}},
		{name: "lone cr kept", input: "a\rb\nc\r", max: 8, want: []result{ok("a\rb"), ok("c\r")}},
		{name: "exactly max", input: "12345\n", max: 5, want: []result{ok("12345")}},
		{name: "exactly max crlf", input: "12345\r\n6", max: 5, want: []result{ok("12345"), ok("6")}},
		{
			name:  "one past max with crlf",
			input: "123456\r\n",
			max:   5,
			want:  []result{incomplete("12345"), incomplete("6")},
		},
		{
			name:  "incomplete then rest",
			input: "12345678\r\n123",
			max:   5,
			want:  []result{incomplete("12345"), incomplete("678"), ok("123")},
		},
		{name: "unterminated exactly max", input: "12345", max: 5, want: []result{incomplete("12345")}},
		{name: "unterminated short", input: "a\nbcd", max: 5, want: []result{ok("a"), ok("bcd")}},
		{
			name:  "cut keeps runes whole",
			input: "héllo",
			max:   2,
			want:  []result{incomplete("h"), incomplete("é"), incomplete("ll"), incomplete("o")},
		},
		{
			name:  "max of one",
			input: "a\nbc\n\nd",
			max:   1,
			want:  []result{ok("a"), incomplete("b"), incomplete("c"), ok(""), incomplete("d")},
		},
	} {
		td := td
		t.Run(td.name, func(t *testing.T) {
			got, err := collect(t, strings.NewReader(td.input), td.max, nil)
			require.NoError(t, err)
			require.Equal(t, td.want, got)

			got, err = collect(t, iotest.OneByteReader(strings.NewReader(td.input)), td.max, nil)
			require.NoError(t, err)
			require.Equal(t, td.want, got, "one byte reader")

			got, err = collect(t, iotest.DataErrReader(strings.NewReader(td.input)), td.max, nil)
			require.NoError(t, err)
			require.Equal(t, td.want, got, "data err reader")
		})
	}
}

func TestIterator_overflowDiscard(t *testing.T) {
	opts := &Options{Overflow: OverflowDiscard}
	for _, td := range []struct {
		name  string
		input string
		want  []result
	}{
		{name: "resumes after delimiter", input: "12345678\nabc\n", want: []result{incomplete("12345"), ok("abc")}},
		{name: "crlf", input: "12345678\r\nabc\r\n", want: []result{incomplete("12345"), ok("abc")}},
		{name: "eof in overflow", input: "12345678", want: []result{incomplete("12345")}},
		{
			name:  "longer than window",
			input: strings.Repeat("z", 100) + "\nnext\n" + strings.Repeat("y", 6),
			want:  []result{incomplete("zzzzz"), ok("next"), incomplete("yyyyy")},
		},
	} {
		td := td
		t.Run(td.name, func(t *testing.T) {
			got, err := collect(t, strings.NewReader(td.input), 5, opts)
			require.NoError(t, err)
			require.Equal(t, td.want, got)

			got, err = collect(t, iotest.HalfReader(strings.NewReader(td.input)), 5, opts)
			require.NoError(t, err)
			require.Equal(t, td.want, got, "half reader")
		})
	}
}

func TestIterator_longUndelimitedInput(t *testing.T) {
	input := strings.Repeat("x", 10_000)

	t.Run("continue", func(t *testing.T) {
		got, err := collect(t, strings.NewReader(input), 1024, nil)
		require.NoError(t, err)
		require.Len(t, got, 10)
		for _, res := range got[:9] {
			require.Equal(t, incomplete(strings.Repeat("x", 1024)), res)
		}
		require.Equal(t, incomplete(strings.Repeat("x", 784)), got[9])
	})

	t.Run("discard", func(t *testing.T) {
		it, err := New(strings.NewReader(input), 1024, &Options{Overflow: OverflowDiscard})
		require.NoError(t, err)
		line, err := it.Next()
		require.ErrorIs(t, err, ErrIncomplete)
		require.Equal(t, 1024, line.Len())
		line, err = it.Next()
		require.Equal(t, io.EOF, err)
		require.Nil(t, line)
	})
}

func TestIterator_totalLength(t *testing.T) {
	input := "Foo\nFoo\na\nbb\nccc\n"
	got, err := collect(t, strings.NewReader(input), 16, nil)
	require.NoError(t, err)
	require.Equal(t, []result{ok("Foo"), ok("Foo"), ok("a"), ok("bb"), ok("ccc")}, got)
	var total int
	for _, res := range got {
		total += len(res.text)
	}
	require.Equal(t, 12, total)

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		var buf bytes.Buffer
		var delimiters int
		lines := rnd.Intn(200)
		for j := 0; j < lines; j++ {
			buf.WriteString(strings.Repeat("ab", rnd.Intn(40)))
			if rnd.Intn(2) == 0 {
				buf.WriteString("\r\n")
				delimiters += 2
			} else {
				buf.WriteString("\n")
				delimiters++
			}
		}
		it, err := New(bytes.NewReader(buf.Bytes()), 80, nil)
		require.NoError(t, err)
		var count int
		for {
			line, err := it.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			count++
			line.Release()
		}
		require.Equal(t, lines, count)
		require.Equal(t, int64(buf.Len()-delimiters), it.Stats().Bytes)
	}
}

func TestIterator_boundedChunks(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		max := rnd.Intn(64) + 5
		run := max + rnd.Intn(500) + 1
		input := "short\n" + strings.Repeat("q", run) + "\nafter\n"
		got, err := collect(t, strings.NewReader(input), max, nil)
		require.NoError(t, err)
		require.Equal(t, ok("short"), got[0])
		var overflowed int
		for _, res := range got[1 : len(got)-1] {
			require.Equal(t, KindIncomplete, res.kind)
			require.LessOrEqual(t, len(res.text), max)
			overflowed += len(res.text)
		}
		require.Equal(t, run, overflowed)
		require.Equal(t, ok("after"), got[len(got)-1])
	}
}

func TestIterator_encoding(t *testing.T) {
	t.Run("ends iteration", func(t *testing.T) {
		it, err := New(strings.NewReader("ok\nab\xfe\nnever\n"), 16, nil)
		require.NoError(t, err)
		line, err := it.Next()
		require.NoError(t, err)
		require.Equal(t, "ok", line.String())

		line, err = it.Next()
		require.Nil(t, line)
		require.ErrorIs(t, err, ErrEncoding)
		require.Equal(t, KindEncoding, Classify(err))
		var encErr *EncodingError
		require.True(t, errors.As(err, &encErr))
		require.Equal(t, &EncodingError{Line: 2, Offset: 3}, encErr)
		require.EqualError(t, err, "reflines: line 2 at offset 3 is not valid UTF-8")

		for i := 0; i < 3; i++ {
			line, err = it.Next()
			require.Nil(t, line)
			require.Equal(t, io.EOF, err)
		}
	})

	t.Run("never ok", func(t *testing.T) {
		for _, input := range []string{"\xff", "a\xc3", "\xc3(", "abc\xed\xa0\x80def"} {
			_, err := collect(t, strings.NewReader(input+"\n"), 16, nil)
			require.ErrorIs(t, err, ErrEncoding, "%q", input)
		}
	})

	t.Run("in incomplete chunk", func(t *testing.T) {
		got, err := collect(t, strings.NewReader("abc\xffdefgh\n"), 4, nil)
		require.ErrorIs(t, err, ErrEncoding)
		require.Empty(t, got)
	})

	t.Run("rune wider than max capacity", func(t *testing.T) {
		got, err := collect(t, strings.NewReader("\xc3\xa9\n"), 1, nil)
		require.Empty(t, got)
		require.Equal(t, &EncodingError{Line: 1, Offset: 0}, err)

		got, err = collect(t, strings.NewReader("ab\xe2\x82\xac\n"), 4, nil)
		require.NoError(t, err)
		require.Equal(t, []result{incomplete("ab"), incomplete("\xe2\x82\xac")}, got)
	})
}

func TestIterator_readError(t *testing.T) {
	errBoom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("a\nb\npartial"), iotest.ErrReader(errBoom))
	it, err := New(r, 16, nil)
	require.NoError(t, err)
	var lines []string
	for {
		line, err := it.Next()
		if err != nil {
			require.Equal(t, errBoom, err)
			require.Equal(t, KindIO, Classify(err))
			break
		}
		lines = append(lines, line.String())
	}
	require.Equal(t, []string{"a", "b"}, lines)
	line, err := it.Next()
	require.Nil(t, line)
	require.Equal(t, io.EOF, err)
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) {
	return 0, nil
}

func TestIterator_noProgress(t *testing.T) {
	it, err := New(emptyReader{}, 16, nil)
	require.NoError(t, err)
	_, err = it.Next()
	require.Equal(t, io.ErrNoProgress, err)
}

func TestIterator_bufferReuse(t *testing.T) {
	first := func(line *Line) *byte {
		return &line.Bytes()[0]
	}
	it, err := New(strings.NewReader("aa\nbb\ncc\ndd\nee\n"), 16, nil)
	require.NoError(t, err)

	l1, err := it.Next()
	require.NoError(t, err)
	p1 := first(l1)
	require.Equal(t, Stats{Lines: 1, Bytes: 2, Allocations: 1}, it.Stats())
	l1.Release()

	// released before the next call, so the storage is reused
	l2, err := it.Next()
	require.NoError(t, err)
	require.Same(t, p1, first(l2))
	require.Equal(t, int64(1), it.Stats().Reuses)

	// l2 is kept across the next call
	l3, err := it.Next()
	require.NoError(t, err)
	require.NotSame(t, p1, first(l3))
	require.Equal(t, int64(2), it.Stats().Allocations)
	require.Equal(t, "bb", l2.String())
	require.Equal(t, "cc", l3.String())

	// l3 released after the call that follows it still costs one allocation
	l4, err := it.Next()
	require.NoError(t, err)
	l3.Release()
	require.Equal(t, int64(3), it.Stats().Allocations)
	p4 := first(l4)
	l4.Release()

	l5, err := it.Next()
	require.NoError(t, err)
	require.Same(t, p4, first(l5))
	require.Equal(t, "ee", l5.String())
	require.Equal(t, "bb", l2.String())
	require.Equal(t, Stats{Lines: 5, Bytes: 10, Allocations: 3, Reuses: 2}, it.Stats())
}

func TestLine(t *testing.T) {
	it, err := New(strings.NewReader("one\ntwo\nthree\n"), 16, nil)
	require.NoError(t, err)

	l1, err := it.Next()
	require.NoError(t, err)
	l1b := l1.Retain()
	l1.Release()
	l1.Release()
	require.Nil(t, l1.Bytes())
	require.Equal(t, "", l1.String())
	require.Nil(t, l1.Retain())
	require.Equal(t, "one", l1b.String())

	// l1b still holds the buffer
	l2, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, int64(2), it.Stats().Allocations)
	require.Equal(t, "one", l1b.String())
	l1b.Release()
	l2.Release()

	l3, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, "three", l3.String())
	require.Equal(t, 5, l3.Len())
	require.Equal(t, int64(1), it.Stats().Reuses)

	var nilLine *Line
	require.Nil(t, nilLine.Bytes())
	require.Nil(t, nilLine.Retain())
	nilLine.Release()
}

func TestNew(t *testing.T) {
	for _, max := range []int{0, -1} {
		it, err := New(strings.NewReader(""), max, nil)
		require.Nil(t, it)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	}
	it := NewDefault(strings.NewReader("x"))
	require.Equal(t, DefaultMaxCapacity, it.MaxCapacity())

	for _, max := range []int{math.MaxInt, math.MaxInt - 1, math.MaxInt - 2} {
		got, err := collect(t, strings.NewReader("a\nb\n"), max, nil)
		require.NoError(t, err, "max %d", max)
		require.Equal(t, []result{ok("a"), ok("b")}, got, "max %d", max)
	}
}

func TestIterator_logging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	it, err := New(strings.NewReader("a\nb\n0123456789\n"), 4, &Options{
		Logger:   logger,
		Overflow: OverflowDiscard,
	})
	require.NoError(t, err)
	for {
		line, err := it.Next()
		if err == io.EOF {
			break
		}
		line.Release()
	}
	var messages []string
	for _, entry := range hook.AllEntries() {
		require.Equal(t, logrus.DebugLevel, entry.Level)
		messages = append(messages, entry.Message)
	}
	require.Equal(t, []string{
		"allocating line buffer",
		"reusing line buffer",
		"reusing line buffer",
		"line exceeds max capacity",
		"discarded rest of over-long line",
	}, messages)
}

func TestClassify(t *testing.T) {
	require.Equal(t, KindOK, Classify(nil))
	require.Equal(t, KindEnd, Classify(io.EOF))
	require.Equal(t, KindIncomplete, Classify(ErrIncomplete))
	require.Equal(t, KindEncoding, Classify(&EncodingError{}))
	require.Equal(t, KindIO, Classify(io.ErrUnexpectedEOF))
	require.Equal(t, "incomplete", KindIncomplete.String())
	require.Equal(t, "Kind(42)", Kind(42).String())
}

func TestParseOverflowPolicy(t *testing.T) {
	for _, p := range []OverflowPolicy{OverflowContinue, OverflowDiscard} {
		got, err := ParseOverflowPolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ParseOverflowPolicy("truncate")
	require.EqualError(t, err, `unknown overflow policy "truncate"`)
}
