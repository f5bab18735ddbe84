// Package nlog - gotar logger: severity-tagged, caller-annotated diagnostics
// with buffering, flushing, and exit-status bookkeeping
/*
 * Copyright (c) 2023-2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"io"
	"os"
)

// exit statuses (as in "tar: Exiting with failure status due to previous errors")
const (
	ExitSuccess   = 0
	ExitDifferent = 1 // some files differ (reserved for compare walkers)
	ExitFailure   = 2
)

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

// Verbose returns true when the configured verbosity is at least `level`
func Verbose(level int) bool { return int(verbosity.Load()) >= level }

func SetVerbosity(level int) { verbosity.Store(int32(level)) }
func SetTitle(s string)      { title.Store(&s) }

// SetOutput redirects all severities; returns the previous writer
func SetOutput(w io.Writer) (prev io.Writer) {
	mu.Lock()
	flushLocked()
	prev = out
	if w == nil {
		w = os.Stderr
	}
	out = w
	mu.Unlock()
	return prev
}

// ExitStatus is the process exit status implied by the diagnostics so far:
// any error-severity line makes it ExitFailure
func ExitStatus() int { return int(exitStatus.Load()) }

func SetExitStatus(status int) {
	for {
		cur := exitStatus.Load()
		if int32(status) <= cur || exitStatus.CompareAndSwap(cur, int32(status)) {
			return
		}
	}
}

func ResetExitStatus() { exitStatus.Store(ExitSuccess) }

// Counts returns the number of warnings and errors logged so far
func Counts() (warnings, errors int64) { return nwarn.Load(), nerr.Load() }

func Flush() {
	mu.Lock()
	flushLocked()
	mu.Unlock()
}
