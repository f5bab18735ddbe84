// Package nlog - gotar logger: severity-tagged, caller-annotated diagnostics
// with buffering, flushing, and exit-status bookkeeping
/*
 * Copyright (c) 2023-2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"io"
	"time"
)

type fixed struct {
	buf  []byte
	woff int
}

// interface guard
var _ io.Writer = (*fixed)(nil)

// Write truncates what does not fit
func (fb *fixed) Write(p []byte) (int, error) {
	fb.woff += copy(fb.buf[fb.woff:], p)
	return len(p), nil
}

func (fb *fixed) writeString(p string) { fb.woff += copy(fb.buf[fb.woff:], p) }

func (fb *fixed) writeByte(c byte) {
	if fb.avail() > 0 {
		fb.buf[fb.woff] = c
		fb.woff++
	}
}

// writeStamp writes the time of day: "15:04:05.000000"
func (fb *fixed) writeStamp() {
	const width = len("15:04:05.000000")
	if fb.avail() < width {
		return
	}
	now := time.Now()
	hour, minute, second := now.Clock()
	fb.digits(hour, 2, ':')
	fb.digits(minute, 2, ':')
	fb.digits(second, 2, '.')
	fb.digits(now.Nanosecond()/1000, 6, 0)
}

// digits writes `v` zero-padded to `width`, followed by `sep` if not zero
func (fb *fixed) digits(v, width int, sep byte) {
	for j := width - 1; j >= 0; j-- {
		fb.buf[fb.woff+j] = byte('0' + v%10)
		v /= 10
	}
	fb.woff += width
	if sep != 0 {
		fb.buf[fb.woff] = sep
		fb.woff++
	}
}

func (fb *fixed) reset()      { fb.woff = 0 }
func (fb *fixed) length() int { return fb.woff }
func (fb *fixed) avail() int  { return cap(fb.buf) - fb.woff }

func (fb *fixed) eol() {
	if fb.woff == 0 || fb.buf[fb.woff-1] != '\n' {
		if fb.avail() == 0 {
			fb.woff--
		}
		fb.buf[fb.woff] = '\n'
		fb.woff++
	}
}
