// Package stats tracks archive I/O and codec counters and exports them
// as Prometheus metrics
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"strings"
	ratomic "sync/atomic"

	"github.com/NVIDIA/gotar/cmn/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metric names
const (
	RecordsRead    = "rec.read.n"
	RecordsWritten = "rec.write.n"
	BytesRead      = "read.size"
	BytesWritten   = "write.size"
	ReadRetries    = "read.retry.n"
	ShortReads     = "read.short.n"
	Volumes        = "volume.n"
	VolumeSize     = "volume.size" // bytes on the current volume
	Checkpoints    = "checkpoint.n"

	// with labels
	Members      = "member.n"     // op, kind
	MemberErrors = "member.err.n" // reason
)

// variable labels
const (
	LabelOp     = "op"
	LabelKind   = "kind"
	LabelReason = "reason"
)

const (
	KindCounter = "counter"
	KindGauge   = "gauge"

	namespace = "gotar"
)

type (
	statsValue struct {
		iprom iprom
		kind  string
		help  string
		Value int64 `json:"v,string"`
	}

	// Tracker is a named set of metrics backed by its own registry
	Tracker struct {
		values map[string]*statsValue
		reg    *prometheus.Registry
	}
)

func New() *Tracker {
	t := &Tracker{values: make(map[string]*statsValue, 16), reg: prometheus.NewRegistry()}
	t.reg.MustRegister(collectors.NewGoCollector())

	t.reg1(RecordsRead, KindCounter, "records read from the archive")
	t.reg1(RecordsWritten, KindCounter, "records written to the archive")
	t.reg1(BytesRead, KindCounter, "total size read (bytes)")
	t.reg1(BytesWritten, KindCounter, "total size written (bytes)")
	t.reg1(ReadRetries, KindCounter, "physical reads retried after an error")
	t.reg1(ShortReads, KindCounter, "physical reads shorter than a record")
	t.reg1(Volumes, KindCounter, "volumes opened")
	t.reg1(VolumeSize, KindGauge, "size of the current volume (bytes)")
	t.reg1(Checkpoints, KindCounter, "checkpoints reached")
	t.regVec(Members, "archive members processed", LabelOp, LabelKind)
	t.regVec(MemberErrors, "archive members failed", LabelReason)
	return t
}

func promName(name string) string {
	return prometheus.BuildFQName(namespace, "", strings.ReplaceAll(name, ".", "_"))
}

func (t *Tracker) reg1(name, kind, help string) {
	v := &statsValue{kind: kind, help: help}
	switch kind {
	case KindCounter:
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: promName(name), Help: help})
		t.reg.MustRegister(c)
		v.iprom = counter{c}
	case KindGauge:
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: promName(name), Help: help})
		t.reg.MustRegister(g)
		v.iprom = gauge{g}
	default:
		debug.Assert(false, kind)
	}
	t.values[name] = v
}

func (t *Tracker) regVec(name, help string, labels ...string) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: promName(name), Help: help}, labels)
	t.reg.MustRegister(c)
	t.values[name] = &statsValue{kind: KindCounter, help: help, iprom: counterVec{c}}
}

func (t *Tracker) Registry() *prometheus.Registry { return t.reg }

func (t *Tracker) Inc(name string) {
	v := t.lookup(name)
	v.iprom.inc(v)
}

func (t *Tracker) Add(name string, val int64) {
	v := t.lookup(name)
	v.iprom.add(v, val)
}

func (t *Tracker) Set(name string, val int64) {
	v := t.lookup(name)
	v.iprom.set(v, val)
}

// IncWith increments a labeled counter; labels are name/value pairs
func (t *Tracker) IncWith(name string, kv ...string) {
	debug.Assert(len(kv)%2 == 0, name)
	labels := make(prometheus.Labels, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		labels[kv[i]] = kv[i+1]
	}
	v := t.lookup(name)
	v.iprom.incWith(v, labels)
}

// Get returns the running total (across all label values)
func (t *Tracker) Get(name string) int64 { return ratomic.LoadInt64(&t.lookup(name).Value) }

// Snapshot: current values by name (labeled metrics summed over labels)
func (t *Tracker) Snapshot() map[string]int64 {
	m := make(map[string]int64, len(t.values))
	for name, v := range t.values {
		m[name] = ratomic.LoadInt64(&v.Value)
	}
	return m
}

func (t *Tracker) lookup(name string) *statsValue {
	v, ok := t.values[name]
	debug.Assertf(ok, "invalid metric name %q", name)
	return v
}
