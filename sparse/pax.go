// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"
	"math"
	"strconv"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

//
// pax 0.0: GNU.sparse.size, GNU.sparse.numblocks, offset/numbytes pairs
// pax 0.1: GNU.sparse.size, GNU.sparse.numblocks, GNU.sparse.name, GNU.sparse.map
// pax 1.0: GNU.sparse.{major,minor,name,realsize}; the map is a block-padded
//          list of decimals at the start of the member data
//

const maxDecimal = 20 // digits in MaxUint64

func (d Dialect) dumpPax(enc *hdr.Encoder, xenc *xhdr.Encoder, st *hdr.Stat) (*Dumped, error) {
	var (
		ast    = *st
		dumped = &Dumped{XHeader: &xhdr.Header{}}
	)
	ast.Typeflag = hdr.RegType
	ast.Size = st.ArchiveFileSize
	ast.RealSize = st.Size
	ast.SparseMajor, ast.SparseMinor = d.Major, d.Minor
	if d.Major > 0 || d.Minor > 0 {
		ast.OrigName = st.Name
		ast.Name = xhdr.Name(st, xhdr.SparseV1NamePattern, xenc.Pid, 0)
	}
	if d.Major > 0 {
		dumped.Data = mapPrologue(st.SparseMap)
		ast.Size += int64(len(dumped.Data))
	}
	h, err := enc.StartHeader(&ast)
	if err != nil {
		return nil, err
	}
	dumped.Header = h

	xh := dumped.XHeader
	for _, key := range h.XKeys {
		xenc.Store(xh, key, &ast, nil)
	}
	switch {
	case d.Major > 0:
		xenc.Store(xh, "GNU.sparse.major", &ast, nil)
		xenc.Store(xh, "GNU.sparse.minor", &ast, nil)
		xenc.Store(xh, "GNU.sparse.name", &ast, nil)
		xenc.Store(xh, "GNU.sparse.realsize", &ast, nil)
	case d.Minor == 0:
		xenc.Store(xh, "GNU.sparse.size", &ast, nil)
		xenc.Store(xh, "GNU.sparse.numblocks", &ast, nil)
		for i := range st.SparseMap {
			xenc.Store(xh, "GNU.sparse.offset", &ast, i)
			xenc.Store(xh, "GNU.sparse.numbytes", &ast, i)
		}
	default:
		xenc.Store(xh, "GNU.sparse.size", &ast, nil)
		xenc.Store(xh, "GNU.sparse.numblocks", &ast, nil)
		xenc.Store(xh, "GNU.sparse.name", &ast, nil)
		xenc.Store(xh, "GNU.sparse.map", &ast, nil)
	}
	return dumped, nil
}

// mapPrologue renders the 1.0 map: count, then offset and numbytes of each
// region, one decimal per line, padded to a block boundary
func mapPrologue(m Map) []byte {
	b := make([]byte, 0, hdr.BlockSize)
	b = strconv.AppendInt(b, int64(len(m)), 10)
	b = append(b, '\n')
	for _, r := range m {
		b = strconv.AppendInt(b, r.Offset, 10)
		b = append(b, '\n')
		b = strconv.AppendInt(b, r.Numbytes, 10)
		b = append(b, '\n')
	}
	padded := cos.CeilAlignI64(int64(len(b)), hdr.BlockSize)
	return append(b, make([]byte, padded-int64(len(b)))...)
}

// lineReader reads newline-terminated decimals out of whole blocks
type lineReader struct {
	r       io.Reader
	st      *hdr.Stat
	blk     hdr.Block
	off     int
	nblocks int
}

func (lr *lineReader) next(maxv int64) (int64, error) {
	var (
		digits [maxDecimal]byte
		n      int
	)
	for {
		if lr.off == hdr.BlockSize || lr.nblocks == 0 {
			if _, err := io.ReadFull(lr.r, lr.blk[:]); err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return 0, errors.Wrapf(err, "%s: sparse map", lr.st.Name)
			}
			lr.off = 0
			lr.nblocks++
		}
		c := lr.blk[lr.off]
		lr.off++
		if c == '\n' {
			break
		}
		if c < '0' || c > '9' || n == maxDecimal {
			return 0, &ErrMalformed{Name: lr.st.Name, Reason: "invalid number in sparse map"}
		}
		digits[n] = c
		n++
	}
	v, err := strconv.ParseInt(string(digits[:n]), 10, 64)
	if err != nil || v > maxv {
		return 0, &ErrMalformed{Name: lr.st.Name, Reason: "numeric overflow in sparse map"}
	}
	return v, nil
}

// decodePaxMap parses the 1.0 map at the start of the member data
func decodePaxMap(st *hdr.Stat, r io.Reader) error {
	lr := &lineReader{r: r, st: st}
	count, err := lr.next(math.MaxInt32)
	if err != nil {
		return err
	}
	st.SparseMapSize = int(count)
	st.SparseMap = make([]hdr.Region, 0, min(count, 1024))
	for range count {
		off, err := lr.next(math.MaxInt64)
		if err != nil {
			return err
		}
		n, err := lr.next(math.MaxInt64)
		if err != nil {
			return err
		}
		if off > math.MaxInt64-n || off+n > st.Size {
			return &ErrMalformed{Name: st.Name, Reason: "region exceeds file size"}
		}
		st.SparseMap = append(st.SparseMap, hdr.Region{Offset: off, Numbytes: n})
	}
	st.ArchiveFileSize -= int64(lr.nblocks) * hdr.BlockSize
	if st.ArchiveFileSize < 0 {
		return &ErrMalformed{Name: st.Name, Reason: "sparse map exceeds member size"}
	}
	return nil
}
