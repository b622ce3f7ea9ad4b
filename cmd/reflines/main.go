package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	"github.com/willabides/reflines"
	"google.golang.org/api/option"
)

// Globals are flags shared by every command.
type Globals struct {
	Config      kong.ConfigFlag `kong:"help='YAML config file. keys are flag names'"`
	LogLevel    string          `kong:"default=warn,enum='trace,debug,info,warn,error',help='log level for messages on stderr'"`
	MaxCapacity int             `kong:"default=65536,help='longest line content in bytes. longer lines are incomplete'"`
	Overflow    string          `kong:"default=continue,enum='continue,discard',help='what to do with the rest of a line after it was incomplete'"`
	Charset     string          `kong:"help='decode sources from this charset instead of UTF-8'"`
	GCSEndpoint string          `kong:"name=gcs-endpoint,hidden,help='storage endpoint for gs:// sources'"`
}

type cliArgs struct {
	Globals `kong:"embed"`

	Cat   catCmd   `kong:"cmd,help='print the lines of each source'"`
	Stats statsCmd `kong:"cmd,help='report line statistics for each source'"`
}

// app is what commands run with.
type app struct {
	ctx         context.Context
	log         *logrus.Logger
	opener      *sourceOpener
	out         io.Writer
	maxCapacity int
	overflow    reflines.OverflowPolicy
}

func newApp(ctx context.Context, g *Globals, stdin io.Reader, out, logOut io.Writer) (*app, error) {
	level, err := logrus.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}
	overflow, err := reflines.ParseOverflowPolicy(g.Overflow)
	if err != nil {
		return nil, err
	}
	if g.MaxCapacity <= 0 {
		return nil, reflines.ErrInvalidCapacity
	}
	logger := logrus.New()
	logger.SetOutput(logOut)
	logger.SetLevel(level)
	opener := &sourceOpener{
		stdin:   stdin,
		charset: g.Charset,
	}
	if g.GCSEndpoint != "" {
		opener.clientOpts = append(opener.clientOpts, option.WithEndpoint(g.GCSEndpoint))
	}
	return &app{
		ctx:         ctx,
		log:         logger,
		opener:      opener,
		out:         out,
		maxCapacity: g.MaxCapacity,
		overflow:    overflow,
	}, nil
}

func (a *app) options(name string) *reflines.Options {
	return &reflines.Options{
		Overflow: a.overflow,
		Logger:   a.log.WithField("source", name),
	}
}

func (a *app) iterator(r io.Reader, name string) (*reflines.Iterator, error) {
	return reflines.New(r, a.maxCapacity, a.options(name))
}

func sourcesOrStdin(sources []string) []string {
	if len(sources) == 0 {
		return []string{"-"}
	}
	return sources
}

func main() {
	var cli cliArgs
	k := kong.Parse(&cli,
		kong.Description("read lines with a bound on line length"),
		kong.Configuration(yamlConfig, configPaths()...),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, &cli.Globals, os.Stdin, os.Stdout, os.Stderr)
	k.FatalIfErrorf(err, "invalid options")
	defer func() {
		_ = a.opener.Close() //nolint:errcheck // nothing to do with this error
	}()
	k.FatalIfErrorf(k.Run(a))
}
