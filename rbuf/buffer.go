// Package rbuf implements record-blocked archive I/O: a stream of 512-byte
// blocks over media read and written in whole records, with retries,
// short-read reblocking, checkpoints and multi-volume switching
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package rbuf

import (
	"io"
	"slices"

	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/stats"

	"github.com/cespare/xxhash/v2"
)

// Buffer owns two records of `BlockingFactor` blocks each and alternates
// between them; at any time one of them is current. The cursor
// (`current`) and the end of valid data (`end`) are block indices within
// the current record, current <= end.
type Buffer struct {
	opts    Options
	rd      io.Reader
	wr      io.Writer
	cl      io.Closer
	digest  *xxhash.Digest
	name    string
	records [2][]byte
	sums    []VolumeSum
	mvs     []inflight

	recordStartBlock int64 // ordinal of the first block of the current record
	recordOffset     int64 // byte offset of the current record within the volume
	volBytes         int64
	nrecords         int64
	recordSize       int
	cur              int
	current          int
	end              int
	readErrors       int
	volno            int
	write            bool
	hitEOF           bool
}

// member data that may still sit in the buffer (multi-volume)
type inflight struct {
	name  string
	size  int64
	start int64 // ordinal of its first data block
}

func (mv *inflight) end() int64 { return mv.start + (mv.size+hdr.BlockSize-1)/hdr.BlockSize }

func newBuffer(name string, opts *Options) *Buffer {
	b := &Buffer{opts: *opts, name: name, digest: xxhash.New(), volno: 1}
	if b.opts.BlockingFactor <= 0 {
		b.opts.BlockingFactor = DefaultBlockingFactor
	}
	debug.Assert(b.opts.BlockingFactor <= MaxBlockingFactor)
	if b.opts.Stats == nil {
		b.opts.Stats = stats.New()
	}
	b.recordSize = b.opts.BlockingFactor * hdr.BlockSize
	b.records[0] = make([]byte, b.recordSize)
	b.records[1] = make([]byte, b.recordSize)
	b.opts.Stats.Inc(stats.Volumes)
	return b
}

// NewReader reads the archive `name` from `r`
func NewReader(r io.Reader, name string, opts *Options) *Buffer {
	b := newBuffer(name, opts)
	b.attach(r)
	return b
}

// NewWriter writes the archive `name` to `w`
func NewWriter(w io.Writer, name string, opts *Options) *Buffer {
	b := newBuffer(name, opts)
	b.write = true
	b.end = b.opts.BlockingFactor
	b.attach(w)
	return b
}

func (b *Buffer) attach(medium any) {
	b.rd, _ = medium.(io.Reader)
	b.wr, _ = medium.(io.Writer)
	b.cl, _ = medium.(io.Closer)
	debug.Assert(b.rd != nil || b.wr != nil)
}

func (b *Buffer) Name() string          { return b.name }
func (b *Buffer) Volno() int            { return b.volno }
func (b *Buffer) RecordSize() int       { return b.recordSize }
func (b *Buffer) BlockingFactor() int   { return b.opts.BlockingFactor }
func (b *Buffer) Writing() bool         { return b.write }
func (b *Buffer) Stats() *stats.Tracker { return b.opts.Stats }

// CurrentBlockOrdinal is the number of blocks before the cursor, counted
// from the start of the archive (across volumes)
func (b *Buffer) CurrentBlockOrdinal() int64 { return b.recordStartBlock + int64(b.current) }

// Volumes returns the closed volumes, in order
func (b *Buffer) Volumes() []VolumeSum { return b.sums }

func (b *Buffer) block(i int) *hdr.Block {
	rec := b.records[b.cur]
	return (*hdr.Block)(rec[i*hdr.BlockSize : (i+1)*hdr.BlockSize])
}

func (b *Buffer) index(blk *hdr.Block) int {
	for i := range b.opts.BlockingFactor {
		if b.block(i) == blk {
			return i
		}
	}
	debug.Assert(false, "block does not belong to the current record")
	return -1
}

// FindNextBlock returns the block at the cursor, reading (or flushing) a
// record first when the current one is exhausted; nil at the end of the
// archive, and nil ever after
func (b *Buffer) FindNextBlock() (*hdr.Block, error) {
	for b.current == b.end {
		if b.hitEOF {
			return nil, nil
		}
		var err error
		if b.write {
			err = b.flush()
		} else {
			err = b.fill()
		}
		if err != nil {
			return nil, err
		}
	}
	return b.block(b.current), nil
}

// SetNextBlockAfter moves the cursor past `blk`; it never does I/O
func (b *Buffer) SetNextBlockAfter(blk *hdr.Block) {
	i := b.index(blk)
	debug.Assert(i < b.end)
	if i >= b.current {
		b.current = i + 1
	}
}

// AvailableSpaceAfter is the number of bytes from the start of `blk` to
// the end of the current record
func (b *Buffer) AvailableSpaceAfter(blk *hdr.Block) int {
	return (b.end - b.index(blk)) * hdr.BlockSize
}

// Span is the contiguous record space from `blk` on (AvailableSpaceAfter bytes)
func (b *Buffer) Span(blk *hdr.Block) []byte {
	i := b.index(blk)
	return b.records[b.cur][i*hdr.BlockSize : b.end*hdr.BlockSize]
}

// Skip advances the cursor by `n` blocks within the current record
func (b *Buffer) Skip(n int) {
	debug.Assert(n >= 0 && b.current+n <= b.end, n)
	b.current += n
}

// MvBegin marks the start of a member's data at the cursor. A member stays
// tracked until its last block has left the buffer: if any of its data
// crosses a volume boundary the volume hook is told how much of it is left.
func (b *Buffer) MvBegin(name string, size int64) {
	b.MvEnd()
	b.mvs = append(b.mvs, inflight{name: name, size: size, start: b.CurrentBlockOrdinal()})
}

// MvEnd forgets the members whose data is entirely in past records
func (b *Buffer) MvEnd() {
	b.mvs = slices.DeleteFunc(b.mvs, func(mv inflight) bool { return mv.end() <= b.recordStartBlock })
}

// inflightAt returns the member whose data includes block `first`
func (b *Buffer) inflightAt(first int64) *InFlight {
	for i := len(b.mvs) - 1; i >= 0; i-- {
		mv := &b.mvs[i]
		if mv.start <= first && first < mv.end() {
			return &InFlight{Name: mv.name, Size: mv.size, Offset: (first - mv.start) * hdr.BlockSize}
		}
	}
	return nil
}

// shiftInflight renumbers the data blocks from `first` on after the volume
// headers moved them by `delta`
func (b *Buffer) shiftInflight(first, delta int64) {
	for i := range b.mvs {
		if b.mvs[i].end() > first {
			b.mvs[i].start += delta
		}
	}
}

func (b *Buffer) account(p []byte) {
	b.digest.Write(p)
	b.volBytes += int64(len(p))
	if b.write {
		b.opts.Stats.Add(stats.BytesWritten, int64(len(p)))
	} else {
		b.opts.Stats.Add(stats.BytesRead, int64(len(p)))
	}
	b.opts.Stats.Set(stats.VolumeSize, b.volBytes)
}

func (b *Buffer) checkpoint() {
	if b.opts.Checkpoint <= 0 || b.nrecords%int64(b.opts.Checkpoint) != 0 {
		return
	}
	n := b.nrecords / int64(b.opts.Checkpoint)
	b.opts.Stats.Inc(stats.Checkpoints)
	switch {
	case b.opts.OnCheckpoint != nil:
		b.opts.OnCheckpoint(n, b.write)
	case b.write:
		nlog.Infof("Write checkpoint %d", n)
	default:
		nlog.Infof("Read checkpoint %d", n)
	}
}

// Close flushes the pending record (write) and closes the medium
func (b *Buffer) Close() (err error) {
	// a volume change may carry the record over, flush until nothing is pending
	for b.write && b.current > 0 && err == nil {
		err = b.Flush()
	}
	if errC := b.closeVolume(); err == nil {
		err = errC
	}
	return err
}
