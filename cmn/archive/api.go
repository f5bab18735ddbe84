// Package archive provides the compression filters an archive stream can be
// wrapped in, and their detection by magic
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"strings"

	"github.com/pkg/errors"
)

// Compression is the filter applied to the whole archive stream
type Compression int

const (
	CompNone Compression = iota
	CompGzip
	CompZstd
	CompLz4
	CompXz
	CompBzip2
)

// supported (compressed) archive file extensions
const (
	ExtTar     = ".tar"
	ExtTgz     = ".tgz"
	ExtTarGz   = ".tar.gz"
	ExtTarZst  = ".tar.zst"
	ExtTzst    = ".tzst"
	ExtTarLz4  = ".tar.lz4"
	ExtTarXz   = ".tar.xz"
	ExtTxz     = ".txz"
	ExtTarBz2  = ".tar.bz2"
	ExtTbz2    = ".tbz2"
	ExtTarAuto = "" // detect by magic
)

var compNames = [...]string{"none", "gzip", "zstd", "lz4", "xz", "bzip2"}

func (c Compression) String() string {
	if int(c) < len(compNames) {
		return compNames[c]
	}
	return "unknown"
}

// CanWrite is false for the read-only filters
func (c Compression) CanWrite() bool { return c != CompBzip2 }

type (
	ErrUnknownCompression struct{ detail string }
)

var ErrWriteUnsupported = errors.New("compression is supported for reading only")

func NewErrUnknownCompression(d string) *ErrUnknownCompression { return &ErrUnknownCompression{d} }
func (e *ErrUnknownCompression) Error() string {
	return "unknown compression \"" + e.detail + "\""
}

func IsErrUnknownCompression(err error) bool {
	var e *ErrUnknownCompression
	return errors.As(err, &e)
}

// ParseCompression accepts the filter names and their customary abbreviations
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompNone, nil
	case "gzip", "gz":
		return CompGzip, nil
	case "zstd", "zst":
		return CompZstd, nil
	case "lz4":
		return CompLz4, nil
	case "xz":
		return CompXz, nil
	case "bzip2", "bz2":
		return CompBzip2, nil
	}
	return CompNone, NewErrUnknownCompression(s)
}

// ByExt maps a file name to the filter implied by its extension
func ByExt(filename string) (Compression, error) {
	switch {
	case strings.HasSuffix(filename, ExtTgz), strings.HasSuffix(filename, ExtTarGz):
		return CompGzip, nil
	case strings.HasSuffix(filename, ExtTarZst), strings.HasSuffix(filename, ExtTzst):
		return CompZstd, nil
	case strings.HasSuffix(filename, ExtTarLz4):
		return CompLz4, nil
	case strings.HasSuffix(filename, ExtTarXz), strings.HasSuffix(filename, ExtTxz):
		return CompXz, nil
	case strings.HasSuffix(filename, ExtTarBz2), strings.HasSuffix(filename, ExtTbz2):
		return CompBzip2, nil
	case strings.HasSuffix(filename, ExtTar):
		return CompNone, nil
	}
	return CompNone, NewErrUnknownCompression(filename)
}
