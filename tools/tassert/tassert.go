// Package tassert provides common asserts for tests
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package tassert

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

const modulePath = "gotar/"

var (
	fatalities = make(map[string]struct{})
	mu         sync.Mutex
)

func stamp() string { return "[" + time.Now().Format("15:04:05.000000") + "]" }

// CheckFatal: a second fatal error in the same test (e.g., from a helper
// goroutine) is printed and the goroutine exits
func CheckFatal(tb testing.TB, err error) {
	if err == nil {
		return
	}
	mu.Lock()
	_, dup := fatalities[tb.Name()]
	fatalities[tb.Name()] = struct{}{}
	mu.Unlock()
	if dup {
		fmt.Fprintf(os.Stderr, "--- %s: duplicate CheckFatal: %v\n", tb.Name(), err)
		runtime.Goexit()
	}
	printStack()
	tb.Fatal(stamp(), err)
}

func CheckError(tb testing.TB, err error) {
	if err != nil {
		printStack()
		tb.Error(stamp(), err)
	}
}

func Fatal(tb testing.TB, cond bool, msg string) { Fatalf(tb, cond, "%s", msg) }
func Error(tb testing.TB, cond bool, msg string) { Errorf(tb, cond, "%s", msg) }

func Fatalf(tb testing.TB, cond bool, format string, args ...any) {
	if !cond {
		printStack()
		tb.Fatalf(format, args...)
	}
}

func Errorf(tb testing.TB, cond bool, format string, args ...any) {
	if !cond {
		printStack()
		tb.Errorf(format, args...)
	}
}

// Bytes fails the test at the first differing byte and reports its offset
func Bytes(tb testing.TB, got, expected []byte, what string) {
	if bytes.Equal(got, expected) {
		return
	}
	off := min(len(got), len(expected))
	for i := range off {
		if got[i] != expected[i] {
			off = i
			break
		}
	}
	printStack()
	tb.Fatalf("%s: mismatch at offset %d (len %d vs %d)", what, off, len(got), len(expected))
}

// printStack prints the callers within this module, up to the test function
func printStack() {
	var sb strings.Builder
	sb.WriteString("    tassert.printStack:\n")
	for depth := 2; depth < 10; depth++ {
		_, file, line, ok := runtime.Caller(depth)
		if !ok {
			break
		}
		i := strings.Index(file, modulePath)
		if i < 0 {
			break
		}
		fmt.Fprintf(&sb, "\t%s:%d\n", file[i+len(modulePath):], line)
	}
	os.Stderr.WriteString(sb.String())
}
