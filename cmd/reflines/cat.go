package main

import (
	"bufio"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/willabides/reflines"
)

type catCmd struct {
	Sources      []string          `kong:"arg,optional,help='files, gs://bucket/object URLs or - for stdin. default is stdin'"`
	OnIncomplete string            `kong:"default=print,enum='print,skip,fail',help='what to do with lines longer than max-capacity. print writes the chunks of a line as one unvalidated output line'"`
	SkipEmpty    bool              `kong:"help='skip lines without a non-whitespace character'"`
	OnlyJSON     bool              `kong:"name=only-json,help='skip lines that are not valid json'"`
	Field        map[string]string `kong:"help='only print json objects with this top level string field value. formatted as key=value'"`
}

func (c *catCmd) validator() reflines.Validator {
	var validators []reflines.Validator
	if c.SkipEmpty {
		validators = append(validators, reflines.ValidateNotEmpty())
	}
	if c.OnlyJSON {
		validators = append(validators, reflines.ValidateJSON())
	}
	if len(c.Field) > 0 {
		validators = append(validators, reflines.ValidateIsJSONObject(), reflines.ValidateJSONFields(c.Field))
	}
	return reflines.ValidateAll(validators...)
}

func (c *catCmd) Run(a *app) error {
	w := bufio.NewWriter(a.out)
	validate := c.validator()
	for _, name := range sourcesOrStdin(c.Sources) {
		err := c.catSource(a, w, name, validate)
		if err != nil {
			_ = w.Flush() //nolint:errcheck // already failing
			return err
		}
	}
	return w.Flush()
}

func (c *catCmd) catSource(a *app, w *bufio.Writer, name string, validate reflines.Validator) (errOut error) {
	src, err := a.opener.open(a.ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := src.Close()
		if errOut == nil {
			errOut = closeErr
		}
	}()
	it, err := a.iterator(src, name)
	if err != nil {
		return err
	}
	// line number of an over-long line whose '\n' has not been written yet
	var openLine int64
	var warned int64
	for {
		if a.ctx.Err() != nil {
			return a.ctx.Err()
		}
		line, err := it.Next()
		kind := reflines.Classify(err)
		if openLine != 0 && (kind != reflines.KindIncomplete || it.LineNumber() != openLine) {
			openLine = 0
			if writeErr := w.WriteByte('\n'); writeErr != nil {
				line.Release()
				return writeErr
			}
		}
		switch kind {
		case reflines.KindEnd:
			return nil
		case reflines.KindOK:
		case reflines.KindIncomplete:
			if warned != it.LineNumber() {
				warned = it.LineNumber()
				a.log.WithFields(logrus.Fields{
					"source": name,
					"line":   it.LineNumber(),
					"bytes":  line.Len(),
				}).Warn("line exceeds max capacity")
			}
			switch c.OnIncomplete {
			case "fail":
				line.Release()
				return fmt.Errorf("%s line %d: %w", name, it.LineNumber(), err)
			case "skip":
				line.Release()
				continue
			}
			_, writeErr := w.Write(line.Bytes())
			line.Release()
			if writeErr != nil {
				return writeErr
			}
			openLine = it.LineNumber()
			continue
		default:
			return fmt.Errorf("%s: %w", name, err)
		}
		var writeErr error
		if validate(line.Bytes()) {
			_, writeErr = w.Write(line.Bytes())
			if writeErr == nil {
				writeErr = w.WriteByte('\n')
			}
		}
		line.Release()
		if writeErr != nil {
			return writeErr
		}
	}
}
