// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"
	"os"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/pkg/errors"
)

// Scanner builds a map out of the consecutive blocks of a live file:
// a run of blocks that are not all-zero becomes one region
type Scanner struct {
	d      Dialect
	m      Map
	cur    hdr.Region
	offset int64
}

func NewScanner(d Dialect) *Scanner { return &Scanner{d: d} }

func (s *Scanner) add(blk []byte) {
	if cos.IsZero(blk) {
		if s.cur.Numbytes > 0 {
			s.m = append(s.m, s.cur)
			s.cur = hdr.Region{}
		}
	} else {
		if s.cur.Numbytes == 0 {
			s.cur.Offset = s.offset
		}
		s.cur.Numbytes += int64(len(blk))
	}
	s.offset += int64(len(blk))
}

// Block consumes the next block (the last one may be short)
func (s *Scanner) Block(blk []byte) error {
	if !s.d.ScanBlock(s, blk) {
		return errors.Errorf("too many regions for %s sparse format", s.d)
	}
	return nil
}

// Finish closes the pending region and appends the zero-length region
// that records the file size
func (s *Scanner) Finish() Map {
	if s.cur.Numbytes > 0 {
		s.m = append(s.m, s.cur)
		s.cur = hdr.Region{}
	}
	return append(s.m, hdr.Region{Offset: s.offset})
}

// Scan reads `r` to the end, one block at a time
func Scan(r io.Reader, d Dialect) (Map, error) {
	var (
		s   = NewScanner(d)
		blk = make([]byte, hdr.BlockSize)
	)
	for {
		n, err := io.ReadFull(r, blk)
		if n > 0 {
			if e := s.Block(blk[:n]); e != nil {
				return nil, e
			}
		}
		switch {
		case err == nil:
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return s.Finish(), nil
		default:
			return nil, err
		}
	}
}

// ScanFile maps a regular file, asking the filesystem for its data
// segments where supported and falling back to Scan otherwise
func ScanFile(f *os.File, size int64, d Dialect) (Map, error) {
	m, err := scanSeek(f, size)
	if err == nil {
		if !fits(d, len(m)) {
			return nil, errors.Errorf("%s: too many regions (%d) for %s sparse format", f.Name(), len(m), d)
		}
		return m, nil
	}
	if nlog.Verbose(2) {
		nlog.Infoln(f.Name()+":", "seek-based hole detection unavailable:", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return Scan(io.LimitReader(f, size), d)
}

func fits(d Dialect, n int) bool {
	switch d.Kind {
	case KindOldGNU:
		return n <= SparsesInOldGNUMax
	case KindStar:
		return n <= SparsesInStarMax
	}
	return true
}
