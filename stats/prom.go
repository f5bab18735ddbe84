// Package stats tracks archive I/O and codec counters and exports them
// as Prometheus metrics
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	ratomic "sync/atomic"

	"github.com/NVIDIA/gotar/cmn/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// same "fat interface" as in the server-side trackers: every kind implements
// all methods, the inapplicable ones assert

type (
	iprom interface {
		inc(parent *statsValue)
		incWith(parent *statsValue, labels prometheus.Labels)
		add(parent *statsValue, val int64)
		set(parent *statsValue, val int64)
	}

	counter    struct{ prometheus.Counter }
	counterVec struct{ *prometheus.CounterVec }
	gauge      struct{ prometheus.Gauge }
)

// interface guard
var (
	_ iprom = (*counter)(nil)
	_ iprom = (*counterVec)(nil)
	_ iprom = (*gauge)(nil)
)

func (v counter) inc(parent *statsValue) {
	ratomic.AddInt64(&parent.Value, 1)
	v.Inc()
}

func (v counter) add(parent *statsValue, val int64) {
	ratomic.AddInt64(&parent.Value, val)
	v.Add(float64(val))
}

func (v counterVec) incWith(parent *statsValue, labels prometheus.Labels) {
	ratomic.AddInt64(&parent.Value, 1)
	v.With(labels).Inc()
}

func (v gauge) add(parent *statsValue, val int64) {
	ratomic.AddInt64(&parent.Value, val)
	v.Add(float64(val))
}

func (v gauge) set(parent *statsValue, val int64) {
	ratomic.StoreInt64(&parent.Value, val)
	v.Set(float64(val))
}

// illegal impl. placeholders

func (counter) incWith(*statsValue, prometheus.Labels) { debug.Assert(false) }
func (counter) set(*statsValue, int64)                 { debug.Assert(false) }
func (counterVec) inc(*statsValue)                     { debug.Assert(false) }
func (counterVec) add(*statsValue, int64)              { debug.Assert(false) }
func (counterVec) set(*statsValue, int64)              { debug.Assert(false) }
func (gauge) inc(*statsValue)                          { debug.Assert(false) }
func (gauge) incWith(*statsValue, prometheus.Labels)   { debug.Assert(false) }
