// Package rbuf implements record-blocked archive I/O: a stream of 512-byte
// blocks over media read and written in whole records, with retries,
// short-read reblocking, checkpoints and multi-volume switching
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package rbuf

import (
	"io"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/stats"
	"github.com/pkg/errors"
)

// flush writes the current record (always whole) and switches to the other
// buffer; end of medium, real or by TapeLength, switches volumes
func (b *Buffer) flush() error {
	rec := b.records[b.cur][:b.end*hdr.BlockSize]
	if b.opts.TapeLength > 0 && b.volBytes > 0 && b.volBytes+int64(len(rec)) > b.opts.TapeLength {
		return b.changeVolume(rec)
	}
	n, err := b.wr.Write(rec)
	if n > 0 {
		b.account(rec[:n])
	}
	if n == len(rec) && err == nil {
		b.nextRecord()
		return nil
	}
	if n%hdr.BlockSize != 0 {
		return errors.Wrapf(ErrUnalignedWrite, "%s: %d bytes written", b.name, n)
	}
	if err == nil {
		err = io.ErrShortWrite
	}
	if err != io.ErrShortWrite && !cos.IsErrNoSpace(err) {
		return errors.Wrapf(err, "%s: cannot write", b.name)
	}
	return b.changeVolume(rec[n:])
}

func (b *Buffer) nextRecord() {
	b.recordStartBlock += int64(b.end)
	b.cur ^= 1
	b.current, b.end = 0, b.opts.BlockingFactor
	clear(b.records[b.cur])
	b.recordOffset = b.volBytes
	b.nrecords++
	b.opts.Stats.Inc(stats.RecordsWritten)
	b.checkpoint()
}

// Flush zero-fills the rest of the current record and writes it out
func (b *Buffer) Flush() error {
	if !b.write || b.current == 0 {
		return nil
	}
	clear(b.records[b.cur][b.current*hdr.BlockSize:])
	b.current = b.end
	return b.flush()
}

// PadRecord zero-fills and consumes the blocks from the cursor to the end
// of the current record
func (b *Buffer) PadRecord() {
	clear(b.records[b.cur][b.current*hdr.BlockSize : b.end*hdr.BlockSize])
	b.current = b.end
}

// StartWriting turns a read buffer into a write buffer positioned at the
// cursor (appending to an archive): the record is rewritten in place, its
// blocks before the cursor preserved
func (b *Buffer) StartWriting() error {
	if b.write {
		return nil
	}
	s, ok := b.rd.(io.Seeker)
	if !ok || b.wr == nil {
		return errors.Wrapf(ErrNotSeekable, "%s: cannot append", b.name)
	}
	if _, err := s.Seek(b.recordOffset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "%s: cannot append", b.name)
	}
	clear(b.records[b.cur][b.current*hdr.BlockSize:])
	b.write = true
	b.hitEOF = false
	b.end = b.opts.BlockingFactor
	b.volBytes = b.recordOffset
	return nil
}

// dataWriter fills blocks at the cursor; Close pads the last block
type dataWriter struct {
	b       *Buffer
	partial int
}

func (b *Buffer) NewDataWriter() io.WriteCloser { return &dataWriter{b: b} }

func (w *dataWriter) Write(p []byte) (written int, err error) {
	for len(p) > 0 {
		var blk *hdr.Block
		if blk, err = w.b.FindNextBlock(); err != nil {
			return written, err
		}
		span := w.b.Span(blk)[w.partial:]
		n := copy(span, p)
		p = p[n:]
		written += n
		w.partial += n
		w.b.Skip(w.partial / hdr.BlockSize)
		w.partial %= hdr.BlockSize
	}
	return written, nil
}

func (w *dataWriter) Close() error {
	if w.partial > 0 {
		blk, err := w.b.FindNextBlock()
		if err != nil {
			return err
		}
		clear(blk[w.partial:])
		w.b.Skip(1)
		w.partial = 0
	}
	return nil
}
