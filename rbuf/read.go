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
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/stats"
	"github.com/pkg/errors"
)

// fill reads the next record into the other buffer; a physical end of
// file either ends the archive or, with multi-volume, switches volumes
func (b *Buffer) fill() error {
	b.recordStartBlock += int64(b.end)
	b.cur ^= 1
	b.current, b.end = 0, 0
	b.recordOffset = b.volBytes

	n, err := b.readRecord(b.records[b.cur])
	if err != nil {
		return err
	}
	if n == 0 {
		if b.opts.MultiVolume {
			return b.changeVolume(nil)
		}
		b.hitEOF = true
		return nil
	}
	b.end = n / hdr.BlockSize
	if n < b.recordSize {
		b.opts.Stats.Inc(stats.ShortReads)
		if b.nrecords == 0 && nlog.Verbose(1) {
			nlog.Infof("%s: record size = %d blocks", b.name, b.end)
		}
	}
	b.nrecords++
	b.opts.Stats.Inc(stats.RecordsRead)
	b.checkpoint()
	return nil
}

// readRecord tolerates short reads as long as they end on a block boundary;
// with ReadFullRecords it keeps reading until the record is full
func (b *Buffer) readRecord(rec []byte) (int, error) {
	n, err := b.readRetry(rec)
	if err != nil || n == 0 {
		return 0, err
	}
	for n%hdr.BlockSize != 0 || (b.opts.ReadFullRecords && n < len(rec)) {
		m, err := b.readRetry(rec[n:])
		if err != nil {
			return 0, err
		}
		if m == 0 {
			break
		}
		if !b.opts.ReadFullRecords {
			return 0, errors.Wrapf(ErrUnaligned, "%s: %d bytes", b.name, n%hdr.BlockSize)
		}
		n += m
	}
	if n%hdr.BlockSize != 0 {
		return 0, errors.Wrapf(ErrUnaligned, "%s: %d bytes", b.name, n%hdr.BlockSize)
	}
	return n, nil
}

// readRetry returns (0, nil) at end of file
func (b *Buffer) readRetry(p []byte) (int, error) {
	for {
		n, err := b.rd.Read(p)
		if n > 0 {
			b.readErrors = 0
			b.account(p[:n])
			return n, nil
		}
		if err == io.EOF {
			return 0, nil
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		if b.nrecords == 0 {
			return 0, errors.Wrapf(ErrFirstRecord, "%s: %v", b.name, err)
		}
		b.readErrors++
		if b.readErrors > ReadErrorMax {
			return 0, errors.Wrapf(ErrTooManyErrors, "%s: %v", b.name, err)
		}
		b.opts.Stats.Inc(stats.ReadRetries)
		nlog.Warningf("%s: read error at block %d: %v", b.name, b.recordStartBlock, err)
	}
}

// SkipData moves the cursor past `size` bytes of member data (block padded)
func (b *Buffer) SkipData(size int64) error {
	for left := cos.Blocks(size); left > 0; {
		blk, err := b.FindNextBlock()
		if err != nil {
			return err
		}
		if blk == nil {
			return io.ErrUnexpectedEOF
		}
		n := min(int64(b.end-b.current), left)
		b.Skip(int(n))
		left -= n
	}
	return nil
}

// dataReader yields the next `left` bytes of member data and then
// consumes the padding of its last block
type dataReader struct {
	b       *Buffer
	left    int64
	partial int // bytes consumed from the block at the cursor
}

// NewDataReader reads `size` bytes of member data starting at the cursor
func (b *Buffer) NewDataReader(size int64) io.Reader {
	return &dataReader{b: b, left: size}
}

func (r *dataReader) Read(p []byte) (int, error) {
	if r.left <= 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	blk, err := r.b.FindNextBlock()
	if err != nil {
		return 0, err
	}
	if blk == nil {
		return 0, io.ErrUnexpectedEOF
	}
	span := r.b.Span(blk)[r.partial:]
	n := copy(p, span[:min(int64(len(span)), r.left)])
	r.left -= int64(n)
	r.partial += n
	if r.left == 0 {
		r.b.Skip(int(cos.Blocks(int64(r.partial))))
		r.partial = 0
	} else {
		r.b.Skip(r.partial / hdr.BlockSize)
		r.partial %= hdr.BlockSize
	}
	return n, nil
}
