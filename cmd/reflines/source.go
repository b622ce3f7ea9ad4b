package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"google.golang.org/api/option"
)

// source is a reader made of layers. Close closes every layer that needs it,
// outermost first.
type source struct {
	io.Reader
	closers []io.Closer
}

func (s *source) push(r io.Reader) {
	s.Reader = r
	if c, ok := r.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

func (s *source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		closeErr := s.closers[i].Close()
		if err == nil {
			err = closeErr
		}
	}
	s.closers = nil
	return err
}

type sourceOpener struct {
	stdin      io.Reader
	charset    string
	clientOpts []option.ClientOption

	clientLock sync.Mutex
	client     *storage.Client
}

// open returns the content of name: "-" for stdin, a gs://bucket/object URL or
// a local path. Content is decompressed according to name's extension and
// converted from charset to UTF-8 when charset is set.
func (o *sourceOpener) open(ctx context.Context, name string) (*source, error) {
	src := new(source)
	var err error
	switch {
	case name == "-":
		src.Reader = o.stdin
	case strings.HasPrefix(name, "gs://"):
		err = o.openObject(ctx, src, name)
	default:
		var file *os.File
		file, err = os.Open(name)
		if err == nil {
			src.push(file)
		}
	}
	if err == nil {
		err = decompress(src, name)
	}
	if err == nil && o.charset != "" {
		err = o.convert(src)
	}
	if err != nil {
		_ = src.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return src, nil
}

func (o *sourceOpener) openObject(ctx context.Context, src *source, name string) error {
	u, err := url.Parse(name)
	if err != nil {
		return err
	}
	obj := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || obj == "" {
		return fmt.Errorf("want gs://bucket/object")
	}
	client, err := o.storageClient(ctx)
	if err != nil {
		return err
	}
	rdr, err := client.Bucket(u.Host).Object(obj).NewReader(ctx)
	if err != nil {
		return err
	}
	src.push(rdr)
	return nil
}

func (o *sourceOpener) storageClient(ctx context.Context) (*storage.Client, error) {
	o.clientLock.Lock()
	defer o.clientLock.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	opts := append([]option.ClientOption{option.WithoutAuthentication()}, o.clientOpts...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

func decompress(src *source, name string) error {
	switch path.Ext(name) {
	case ".gz":
		gzr, err := gzip.NewReader(src.Reader)
		if err != nil {
			return err
		}
		src.push(gzr)
	case ".zst":
		dec, err := zstd.NewReader(src.Reader)
		if err != nil {
			return err
		}
		src.push(dec.IOReadCloser())
	case ".xz":
		xzr, err := xz.NewReader(src.Reader)
		if err != nil {
			return err
		}
		src.push(xzr)
	case ".br":
		src.push(brotli.NewReader(src.Reader))
	}
	return nil
}

func (o *sourceOpener) convert(src *source) error {
	enc, err := htmlindex.Get(o.charset)
	if err != nil {
		return fmt.Errorf("charset %q: %w", o.charset, err)
	}
	src.push(transform.NewReader(src.Reader, enc.NewDecoder()))
	return nil
}

// Close closes the storage client if one was created.
func (o *sourceOpener) Close() error {
	o.clientLock.Lock()
	defer o.clientLock.Unlock()
	if o.client == nil {
		return nil
	}
	return o.client.Close()
}
