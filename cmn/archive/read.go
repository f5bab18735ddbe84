// Package archive provides the compression filters an archive stream can be
// wrapped in, and their detection by magic
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"compress/bzip2"
	"io"

	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type (
	// decompressors without Close of their own
	nopReader struct {
		io.Reader
	}
	zstdReader struct {
		*zstd.Decoder
	}
)

// interface guard
var (
	_ io.ReadCloser = (*nopReader)(nil)
	_ io.ReadCloser = (*zstdReader)(nil)
	_ io.ReadCloser = (*gzip.Reader)(nil)
)

func (*nopReader) Close() error { return nil }

func (zr *zstdReader) Close() error {
	zr.Decoder.Close()
	return nil
}

// NewReader wraps `r` in the decompressor for `comp`; closing the result
// does not close `r`
func NewReader(r io.Reader, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompNone:
		return &nopReader{r}, nil
	case CompGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return gzr, nil
	case CompZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		return &zstdReader{dec}, nil
	case CompLz4:
		return &nopReader{lz4.NewReader(r)}, nil
	case CompXz:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		return &nopReader{xzr}, nil
	case CompBzip2:
		return &nopReader{bzip2.NewReader(r)}, nil
	default:
		debug.Assert(false, comp.String())
		return nil, NewErrUnknownCompression(comp.String())
	}
}
