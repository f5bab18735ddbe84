// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/pkg/errors"
)

type truncater interface {
	Truncate(size int64) error
}

// Writer materializes an expanded file: seekable destinations get real
// holes, others get the holes written out as zeros
type Writer struct {
	w   io.Writer
	s   io.Seeker
	t   truncater
	pos int64
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if s, ok := w.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekCurrent); err == nil {
			sw.s = s
			sw.t, _ = w.(truncater)
		}
	}
	return sw
}

func (w *Writer) Seekable() bool { return w.s != nil }
func (w *Writer) Offset() int64  { return w.pos }

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}

func (w *Writer) seek(off int64) error {
	if off == w.pos {
		return nil
	}
	if w.s == nil {
		if off < w.pos {
			return errors.Errorf("cannot seek back from %d to %d on a non-seekable output", w.pos, off)
		}
		return writeZeros(w, off-w.pos)
	}
	if _, err := w.s.Seek(off, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to %d", off)
	}
	w.pos = off
	return nil
}

// sets the file size to the current offset (trailing hole)
func (w *Writer) truncate() error {
	switch {
	case w.s == nil:
		return nil // zeros already written
	case w.t != nil:
		return w.t.Truncate(w.pos)
	case w.pos == 0:
		return nil
	default:
		// no Truncate: extend by rewriting the last byte of the hole
		if _, err := w.s.Seek(w.pos-1, io.SeekStart); err != nil {
			return err
		}
		w.pos--
		_, err := w.Write([]byte{0})
		return err
	}
}

// region seeks to the region's offset and copies its data; a zero-length
// region sets the file size
func (w *Writer) region(r hdr.Region, data io.Reader) (int64, error) {
	if err := w.seek(r.Offset); err != nil {
		return 0, err
	}
	if r.Numbytes == 0 {
		return 0, w.truncate()
	}
	n, err := io.CopyN(w, data, r.Numbytes)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Materialize writes out the expanded file of `size` bytes described by `m`,
// reading the region data from `data` in map order
func Materialize(w io.Writer, m Map, size int64, data io.Reader) error {
	sw, ok := w.(*Writer)
	if !ok {
		sw = NewWriter(w)
	}
	return Dialect{}.Extract(sw, &hdr.Stat{SparseMap: m, Size: size}, data)
}

func writeZeros(w io.Writer, n int64) error {
	_, err := cos.WriteZeros(w, n)
	return err
}
