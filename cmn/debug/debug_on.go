//go:build debug

// Package debug provides build-tag gated assertions
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"

	"github.com/NVIDIA/gotar/cmn/nlog"
)

// block size is duplicated here to keep debug free of domain imports
const blockSize = 512

func ON() bool { return true }

func Infof(f string, a ...any) {
	nlog.InfoDepth(1, fmt.Sprintf("[DEBUG] "+f, a...))
}

func Func(f func()) { f() }

func Assert(cond bool, a ...any) {
	if !cond {
		nlog.Flush()
		if len(a) > 0 {
			panic("DEBUG PANIC: " + fmt.Sprint(a...))
		}
		panic("DEBUG PANIC")
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func AssertNoErr(err error) {
	if err != nil {
		nlog.Flush()
		panic(err)
	}
}

func Assertf(cond bool, f string, a ...any) {
	if !cond {
		nlog.Flush()
		panic("DEBUG PANIC: " + fmt.Sprintf(f, a...))
	}
}

// archive blocks are always handed out as whole 512-byte units
func AssertBlock(b []byte) {
	Assertf(len(b) >= blockSize && len(b)%blockSize == 0, "invalid block length %d", len(b))
}

func AssertRange(v, lo, hi int, a ...any) {
	if v < lo || v > hi {
		Assertf(false, "%d not in [%d, %d] %s", v, lo, hi, fmt.Sprint(a...))
	}
}
