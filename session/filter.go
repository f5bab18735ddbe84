// Package session drives reading and writing of whole archives: header
// sequencing, member data, end-of-archive, volume labels and multi-volume
// continuation, on top of the record buffer and the header codecs
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"io"

	"github.com/NVIDIA/gotar/cmn/archive"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// filter runs the (de)compressor as a separate task connected to the record
// buffer with a pipe: the buffer sees the plain tar stream, the medium the
// compressed one
type filter struct {
	group *errgroup.Group
	comp  archive.Compression
}

// newFilter returns the pipe end for the record buffer
func newFilter(medium any, comp archive.Compression, write bool) (*filter, any, error) {
	f := &filter{group: &errgroup.Group{}, comp: comp}
	if write {
		w, ok := medium.(io.Writer)
		if !ok {
			return nil, nil, errors.New("archive medium is not writable")
		}
		zw, err := archive.NewWriter(w, comp)
		if err != nil {
			return nil, nil, err
		}
		rp, wp := io.Pipe()
		f.group.Go(func() error {
			_, err := io.Copy(zw, rp)
			if errC := zw.Close(); err == nil {
				err = errC
			}
			rp.CloseWithError(err)
			return err
		})
		return f, wp, nil
	}

	r, ok := medium.(io.Reader)
	if !ok {
		return nil, nil, errors.New("archive medium is not readable")
	}
	zr, err := archive.NewReader(r, comp)
	if err != nil {
		return nil, nil, err
	}
	rp, wp := io.Pipe()
	f.group.Go(func() error {
		_, err := io.Copy(wp, zr)
		zr.Close()
		wp.CloseWithError(err)
		return err
	})
	return f, rp, nil
}

// wait for the task to finish; the record buffer must have closed its end
func (f *filter) wait() error {
	err := f.group.Wait()
	if err == nil || errors.Is(err, io.ErrClosedPipe) {
		return nil // reader stopped before the end of the stream
	}
	return errors.Wrapf(err, "%s filter", f.comp)
}
