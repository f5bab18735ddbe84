// Package rbuf implements record-blocked archive I/O: a stream of 512-byte
// blocks over media read and written in whole records, with retries,
// short-read reblocking, checkpoints and multi-volume switching
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package rbuf

import (
	"bytes"

	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/stats"
	"github.com/pkg/errors"
)

// changeVolume closes the current volume and opens the next one. When
// writing, `tail` is the unwritten part of the current record: it is
// carried over to the new volume after whatever the volume hook emits.
func (b *Buffer) changeVolume(tail []byte) error {
	if !b.opts.MultiVolume || b.opts.Changer == nil || b.opts.Opener == nil {
		if b.write {
			return errors.Wrapf(ErrEndOfMedium, "%s: volume %d", b.name, b.volno)
		}
		b.hitEOF = true
		return nil
	}
	first := b.recordStartBlock + int64(b.end-len(tail)/hdr.BlockSize)
	mv := b.inflightAt(first)
	tail = bytes.Clone(tail)
	if err := b.closeVolume(); err != nil {
		return err
	}

	b.volno++
	next, err := b.opts.Changer(b.name, b.volno)
	if err != nil {
		return errors.Wrapf(ErrVolumeAbort, "volume %d: %v", b.volno, err)
	}
	medium, err := b.opts.Opener(next, b.volno)
	if err != nil {
		return errors.Wrapf(ErrVolumeAbort, "%s: %v", next, err)
	}
	if nlog.Verbose(1) {
		nlog.Infof("volume %d: %s", b.volno, next)
	}
	b.name = next
	b.attach(medium)
	b.volBytes, b.recordOffset = 0, 0
	b.digest.Reset()
	b.opts.Stats.Inc(stats.Volumes)

	b.recordStartBlock = first
	b.cur ^= 1
	b.current = 0
	if b.write {
		b.end = b.opts.BlockingFactor
		clear(b.records[b.cur])
	} else {
		b.end = 0
	}
	if b.opts.OnVolume != nil {
		if err := b.opts.OnVolume(b, b.volno, mv); err != nil {
			return err
		}
	}
	b.shiftInflight(first, b.CurrentBlockOrdinal()-first)
	for len(tail) > 0 {
		blk, err := b.FindNextBlock()
		if err != nil {
			return err
		}
		n := copy(b.Span(blk), tail)
		b.Skip(n / hdr.BlockSize)
		tail = tail[n:]
	}
	return nil
}

func (b *Buffer) closeVolume() (err error) {
	sum := VolumeSum{Name: b.name, Size: b.volBytes, Digest: b.digest.Sum64(), Volno: b.volno}
	b.sums = append(b.sums, sum)
	if nlog.Verbose(1) {
		nlog.Infof("volume %d (%s): %d bytes, xxhash %016x", sum.Volno, sum.Name, sum.Size, sum.Digest)
	}
	if b.cl != nil {
		err = b.cl.Close()
		b.cl = nil
	}
	return err
}
