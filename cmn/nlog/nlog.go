// Package nlog - gotar logger: severity-tagged, caller-annotated diagnostics
// with buffering, flushing, and exit-status bookkeeping
/*
 * Copyright (c) 2023-2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	nlogBufSize  = 16 * 1024
	nlogLineSize = 4 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	// of `fixed` line bufs
	pool = sync.Pool{
		New: func() any {
			return &fixed{buf: make([]byte, nlogLineSize)}
		},
	}

	// assorted filenames that we don't want to show up
	redactFnames = map[string]int{
		"api": 0,
	}
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
	pw            = &fixed{buf: make([]byte, nlogBufSize)}

	title      atomic.Pointer[string]
	verbosity  atomic.Int32
	exitStatus atomic.Int32
	nwarn      atomic.Int64
	nerr       atomic.Int64
)

func init() {
	s := filepath.Base(os.Args[0])
	title.Store(&s)
}

// main function
func log(sev severity, depth int, format string, args ...any) {
	switch sev {
	case sevWarn:
		nwarn.Add(1)
	case sevErr:
		nerr.Add(1)
		SetExitStatus(ExitFailure)
	}
	fb := alloc()
	sprintf(sev, depth, format, fb, args...)

	mu.Lock()
	if pw.avail() < fb.length() {
		flushLocked()
	}
	pw.Write(fb.buf[:fb.woff])
	// warnings and errors are never held back
	if sev >= sevWarn {
		flushLocked()
	}
	mu.Unlock()
	free(fb)
}

// under mu-lock
func flushLocked() {
	if pw.woff == 0 {
		return
	}
	if _, err := out.Write(pw.buf[:pw.woff]); err != nil && out != os.Stderr {
		os.Stderr.Write(pw.buf[:pw.woff])
	}
	pw.reset()
}

//
// utils
//

func formatHdr(s severity, depth int, fb *fixed) {
	const char = "IWE"
	_, fn, ln, ok := runtime.Caller(3 + depth)
	fb.writeByte(char[s])
	fb.writeByte(' ')
	fb.writeStamp()
	fb.writeByte(' ')
	if !ok {
		return
	}
	idx := strings.LastIndexByte(fn, filepath.Separator)
	if idx > 0 {
		fn = fn[idx+1:]
	}
	if l := len(fn); l > 3 {
		fn = fn[:l-3]
	}
	if _, redact := redactFnames[fn]; redact {
		return
	}
	fb.writeString(fn)
	fb.writeByte(':')
	fb.writeString(strconv.Itoa(ln))
	fb.writeByte(' ')
}

func sprintf(sev severity, depth int, format string, fb *fixed, args ...any) {
	formatHdr(sev, depth+1, fb)
	if sev >= sevWarn {
		fb.writeString(*title.Load())
		fb.writeString(": ")
	}
	if format == "" {
		fmt.Fprint(fb, args...)
	} else {
		fmt.Fprintf(fb, format, args...)
	}
	fb.eol()
}

func alloc() (fb *fixed) {
	fb = pool.Get().(*fixed)
	fb.reset()
	return
}

func free(fb *fixed) { pool.Put(fb) }
