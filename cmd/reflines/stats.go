package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/killa-beez/gopkgs/pool"
	"github.com/rivo/uniseg"
	"github.com/willabides/reflines"
)

type statsCmd struct {
	Sources     []string `kong:"arg,optional,help='files, gs://bucket/object URLs or - for stdin. default is stdin'"`
	Concurrency int      `kong:"default=4,help='number of sources to read at once'"`
	JSON        bool     `kong:"name=json,help='output json'"`
}

type sourceStats struct {
	Source      string `json:"source"`
	Lines       int64  `json:"lines"`
	Incomplete  int64  `json:"incomplete"`
	Bytes       int64  `json:"bytes"`
	Graphemes   int64  `json:"graphemes"`
	Allocations int64  `json:"allocations"`
	Reuses      int64  `json:"reuses"`
	Error       string `json:"error,omitempty"`
}

func (c *statsCmd) Run(a *app) error {
	sources := sourcesOrStdin(c.Sources)
	concurrency := c.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]sourceStats, len(sources))
	p := pool.New(len(sources), concurrency)
	for i := range sources {
		i := i
		p.Add(pool.NewWorkUnit(func(ctx context.Context) {
			results[i] = readStats(ctx, a, sources[i])
		}))
	}
	p.Start(a.ctx)
	p.Wait()

	err := c.write(a, results)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Error != "" {
			return fmt.Errorf("%s: %s", res.Source, res.Error)
		}
	}
	return nil
}

func readStats(ctx context.Context, a *app, name string) sourceStats {
	res := sourceStats{Source: name}
	err := countLines(ctx, a, name, &res)
	if err != nil {
		res.Error = err.Error()
		a.log.WithError(err).WithField("source", name).Error("reading source")
	}
	return res
}

func countLines(ctx context.Context, a *app, name string, res *sourceStats) (errOut error) {
	src, err := a.opener.open(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := src.Close()
		if errOut == nil {
			errOut = closeErr
		}
	}()
	scanner, err := reflines.NewScanner(src, a.maxCapacity, a.options(name))
	if err != nil {
		return err
	}
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Graphemes += int64(uniseg.GraphemeClusterCount(string(scanner.Bytes())))
	}
	st := scanner.Stats()
	res.Lines = st.Lines
	res.Incomplete = st.Incomplete
	res.Bytes = st.Bytes
	res.Allocations = st.Allocations
	res.Reuses = st.Reuses
	return scanner.Err()
}

func (c *statsCmd) write(a *app, results []sourceStats) error {
	if c.JSON {
		return jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(a.out).Encode(results)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLINES\tINCOMPLETE\tBYTES\tGRAPHEMES\tALLOCATIONS\tREUSES")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			res.Source, res.Lines, res.Incomplete, res.Bytes, res.Graphemes, res.Allocations, res.Reuses)
	}
	return tw.Flush()
}
