// Package cos provides common low-level types and utilities for all gotar packages
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"bytes"
	"io"

	"github.com/NVIDIA/gotar/cmn/debug"
)

var zeros [32 * KiB]byte

func Close(closer io.Closer) {
	err := closer.Close()
	debug.AssertNoErr(err)
}

// WriteZeros writes n zero bytes
func WriteZeros(w io.Writer, n int64) (written int64, err error) {
	for n > 0 {
		chunk := min(n, int64(len(zeros)))
		var k int
		k, err = w.Write(zeros[:chunk])
		written += int64(k)
		if err != nil {
			return
		}
		n -= int64(k)
	}
	return
}

// IsZero returns true if all bytes in `b` are zero
func IsZero(b []byte) bool {
	for len(b) > 0 {
		n := min(len(b), len(zeros))
		if !bytes.Equal(b[:n], zeros[:n]) {
			return false
		}
		b = b[n:]
	}
	return true
}

///////////////
// nopCloser //
///////////////

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func NopWriteCloser(w io.Writer) io.WriteCloser { return nopWriteCloser{w} }
