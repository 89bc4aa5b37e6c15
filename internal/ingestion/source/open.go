// Package source opens bulk review files and decodes them into raw records.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/yungbote/winegraph/internal/platform/gcp"
)

// Stdin is the source name that reads standard input.
const Stdin = "-"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// Open returns a reader over the decompressed contents of uri: a local path, "-"
// for stdin, or gs://bucket/key (objects may be nil when no bucket reader is
// configured).
func Open(ctx context.Context, uri string, objects gcp.ObjectReader) (io.ReadCloser, error) {
	uri = strings.TrimSpace(uri)
	var (
		raw io.ReadCloser
		err error
	)
	switch {
	case uri == "":
		return nil, errors.New("source: empty uri")
	case uri == Stdin:
		raw = io.NopCloser(os.Stdin)
	case strings.HasPrefix(uri, "gs://"):
		if objects == nil {
			return nil, fmt.Errorf("source: %s needs object storage configured", uri)
		}
		bucket, key, perr := gcp.ParseURI(uri)
		if perr != nil {
			return nil, perr
		}
		raw, err = objects.Open(ctx, bucket, key)
	default:
		raw, err = os.Open(uri)
	}
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", uri, err)
	}
	rc, err := Decompress(raw, uri)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("source: %s: %w", uri, err)
	}
	return rc, nil
}

// Decompress wraps rc in a gzip or zstd reader when the name's extension or the
// leading magic bytes say so. Closing the result closes rc.
func Decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, 64<<10)
	comp := byExtension(name)
	if comp == CompressionNone {
		head, _ := br.Peek(len(zstdMagic))
		comp = byMagic(head)
	}
	switch comp {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &stacked{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &stacked{Reader: zr, closers: []io.Closer{zstdCloser{zr}, rc}}, nil
	default:
		return &stacked{Reader: br, closers: []io.Closer{rc}}, nil
	}
}

func byExtension(name string) Compression {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

func byMagic(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
