// Package archive provides the compression filters an archive stream can be
// wrapped in, and their detection by magic
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"io"

	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

type nopWriter struct {
	io.Writer
}

// interface guard
var (
	_ io.WriteCloser = (*nopWriter)(nil)
	_ io.WriteCloser = (*gzip.Writer)(nil)
	_ io.WriteCloser = (*zstd.Encoder)(nil)
	_ io.WriteCloser = (*lz4.Writer)(nil)
	_ io.WriteCloser = (*xz.Writer)(nil)
)

func (*nopWriter) Close() error { return nil }

// NewWriter wraps `w` in the compressor for `comp`; Close flushes the
// compressor but does not close `w`
func NewWriter(w io.Writer, comp Compression) (io.WriteCloser, error) {
	switch comp {
	case CompNone:
		return &nopWriter{w}, nil
	case CompGzip:
		return gzip.NewWriter(w), nil
	case CompZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		return enc, nil
	case CompLz4:
		return lz4.NewWriter(w), nil
	case CompXz:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		return xzw, nil
	case CompBzip2:
		return nil, errors.Wrap(ErrWriteUnsupported, comp.String())
	default:
		debug.Assert(false, comp.String())
		return nil, NewErrUnknownCompression(comp.String())
	}
}
