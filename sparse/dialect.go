// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"
	"strconv"

	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindOldGNU Kind = iota + 1
	KindStar
	KindPax
)

// Dialect selects the on-archive representation of the map
type Dialect struct {
	Kind  Kind
	Major int // pax only
	Minor int
}

var (
	OldGNU = Dialect{Kind: KindOldGNU}
	Star   = Dialect{Kind: KindStar}
	PaxV00 = Dialect{Kind: KindPax, Major: 0, Minor: 0}
	PaxV01 = Dialect{Kind: KindPax, Major: 0, Minor: 1}
	PaxV10 = Dialect{Kind: KindPax, Major: 1, Minor: 0}
)

// sanity bound on the extension chain (OLDGNU and STAR)
const MaxExtBlocks = 1 << 16

func (d Dialect) String() string {
	switch d.Kind {
	case KindOldGNU:
		return "oldgnu"
	case KindStar:
		return "star"
	case KindPax:
		return "pax-" + strconv.Itoa(d.Major) + "." + strconv.Itoa(d.Minor)
	}
	return "none"
}

// ParseVersion parses a pax sparse version ("0.0", "0.1", "1.0", or just the major)
func ParseVersion(s string) (Dialect, error) {
	switch s {
	case "0.0", "0":
		return PaxV00, nil
	case "0.1":
		return PaxV01, nil
	case "1.0", "1", "":
		return PaxV10, nil
	}
	return Dialect{}, errors.Errorf("unsupported sparse version %q", s)
}

// Select chooses the dialect on the write side
func Select(format hdr.Format, pax Dialect) (Dialect, error) {
	switch format {
	case hdr.FormatOldGNU, hdr.FormatGNU, hdr.FormatDefault:
		return OldGNU, nil
	case hdr.FormatSTAR:
		return Star, nil
	case hdr.FormatPOSIX:
		if pax.Kind != KindPax {
			return PaxV10, nil
		}
		return pax, nil
	}
	return Dialect{}, errors.Errorf("sparse files are not supported in %s format", format)
}

// Detect chooses the dialect on the read side, after the header and its
// extended header are decoded
func Detect(st *hdr.Stat) (Dialect, bool) {
	switch {
	case st.Typeflag == hdr.Sparse && st.Format == hdr.FormatSTAR:
		return Star, true
	case st.Typeflag == hdr.Sparse:
		return OldGNU, true
	case st.SparseMajor > 0:
		return Dialect{Kind: KindPax, Major: st.SparseMajor, Minor: st.SparseMinor}, true
	case st.IsSparse || len(st.SparseMap) > 0:
		return Dialect{Kind: KindPax, Major: 0, Minor: st.SparseMinor}, true
	}
	return Dialect{}, false
}

// IsSparseMember is true if `st` (as decoded) is stored in dialect `d`
func (d Dialect) IsSparseMember(st *hdr.Stat) bool {
	got, ok := Detect(st)
	return ok && got.Kind == d.Kind
}

// Dumped is the header side of a sparse member, in archive order:
// extended header (pax), header, extension blocks (OLDGNU, STAR), and the
// in-data map (pax 1.0)
type Dumped struct {
	XHeader *xhdr.Header
	Header  *hdr.Header
	Ext     []hdr.Block
	Data    []byte
}

// DumpHeader builds the header records of a sparse member; `st.Size` is the
// expanded size, `st.SparseMap` the scanned map. On return, `st.ArchiveFileSize`
// is the number of bytes that follow the header records in the member data.
func (d Dialect) DumpHeader(enc *hdr.Encoder, xenc *xhdr.Encoder, st *hdr.Stat) (*Dumped, error) {
	m := Map(st.SparseMap)
	if err := m.Validate(st.Name, st.Size); err != nil {
		return nil, err
	}
	st.ArchiveFileSize = m.DataSize()
	switch d.Kind {
	case KindOldGNU:
		return dumpOldGNU(enc, st)
	case KindStar:
		return dumpStar(enc, st)
	case KindPax:
		return d.dumpPax(enc, xenc, st)
	}
	debug.Assertf(false, "invalid sparse dialect %v", d)
	return nil, nil
}

// FixupHeader corrects the sizes decoded from the header block: the header's
// size field holds the stored size, the expanded size comes from elsewhere
func (d Dialect) FixupHeader(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat) error {
	switch d.Kind {
	case KindOldGNU:
		return fixupOldGNU(dec, b, st)
	case KindStar:
		return fixupStar(dec, b, st)
	}
	return nil // pax: done by the extended header
}

// DecodeHeader completes the map of a sparse member. OLDGNU extension blocks
// follow the header and are read from `r`; STAR extension blocks and the
// pax 1.0 map are part of the member data and `r` must be its data reader.
func (d Dialect) DecodeHeader(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat, r io.Reader) error {
	var err error
	switch d.Kind {
	case KindOldGNU:
		err = decodeOldGNU(dec, b, st, r)
	case KindStar:
		err = decodeStar(dec, b, st, r)
	case KindPax:
		if d.Major > 0 {
			err = decodePaxMap(st, r)
		}
	}
	if err != nil {
		return err
	}
	st.IsSparse = true
	return Map(st.SparseMap).Validate(st.Name, st.Size)
}

// ScanBlock feeds one block of the live file to the scanner; false if the
// resulting map cannot be represented in `d`
func (d Dialect) ScanBlock(s *Scanner, blk []byte) bool {
	s.add(blk)
	return fits(d, len(s.m))
}

// DumpRegion copies region `i` of the live file to the member data `w`;
// a file that shrank is padded with zeros (the shortfall is returned)
func (Dialect) DumpRegion(w io.Writer, f io.ReaderAt, st *hdr.Stat, i int) (shrank int64, err error) {
	r := st.SparseMap[i]
	n, err := io.Copy(w, io.NewSectionReader(f, r.Offset, r.Numbytes))
	if err != nil {
		return 0, err
	}
	if n < r.Numbytes {
		shrank = r.Numbytes - n
		err = writeZeros(w, shrank)
	}
	return shrank, err
}

// ExtractRegion writes region `i` to `w` at its offset, reading its data from `data`
func (Dialect) ExtractRegion(w *Writer, st *hdr.Stat, i int, data io.Reader) error {
	r := st.SparseMap[i]
	if n, err := w.region(r, data); err != nil {
		return errors.Wrapf(err, "%s: region %d: %d of %d bytes", st.Name, i, n, r.Numbytes)
	}
	return nil
}

// Extract materializes the whole member: regions in map order, then the
// trailing hole if the map stops short of the expanded size
func (d Dialect) Extract(w *Writer, st *hdr.Stat, data io.Reader) error {
	for i := range st.SparseMap {
		if err := d.ExtractRegion(w, st, i, data); err != nil {
			return err
		}
	}
	if w.pos < st.Size {
		if err := w.seek(st.Size); err != nil {
			return err
		}
		return w.truncate()
	}
	return nil
}

// capacity of the header-resident dialects
const (
	SparsesInOldGNUMax = hdr.SparsesInOldGNU + MaxExtBlocks*hdr.SparsesInExtension
	SparsesInStarMax   = hdr.SparsesInStar + MaxExtBlocks*hdr.SparsesInStarExt
)
