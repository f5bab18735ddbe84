// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"
	"math"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
)

//
// STAR: "old star" headers carry 4 entries and the real size in the area
// that otherwise holds the prefix; extension blocks of 21 follow and, unlike
// OLDGNU, are counted in the header's size field
//

// isOldStar is the byte-exact test star and GNU tar use: an empty prefix and
// a non-NUL 11th byte of the first offset
func isOldStar(b *hdr.Block) bool {
	return b.StarPrefix()[0] == 0 && b.StarSparse(0).Offset[10] != 0
}

func fixupStar(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat) error {
	st.ArchiveFileSize = st.Size
	if !isOldStar(b) {
		return nil
	}
	if v, err := dec.OffFromChars(b.StarRealsize()); err == nil && v > 0 {
		st.Size, st.RealSize, st.RealSizeSet = v, v, true
	}
	return nil
}

func decodeStar(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat, r io.Reader) error {
	var (
		rc    = addOK
		ext   = true
		limit = int64(math.MaxInt64)
		n     int
	)
	if st.RealSizeSet {
		limit = st.Size
	}
	st.SparseMap = st.SparseMap[:0]
	if isOldStar(b) {
		for i := range hdr.SparsesInStar {
			if rc = addEntry(dec, b.StarSparse(i), st, limit); rc != addOK {
				break
			}
		}
		ext = b.StarIsExtended()
	}
	for ; rc == addOK && ext; n++ {
		eb, err := readExt(r, st, n)
		if err != nil {
			return err
		}
		for i := 0; i < hdr.SparsesInStarExt && rc == addOK; i++ {
			rc = addEntry(dec, eb.ExtSparse(i), st, limit)
		}
		ext = eb.ExtIsExtended()
	}
	if rc == addFail {
		return &ErrMalformed{Name: st.Name, Reason: "invalid sparse map entry"}
	}
	st.ArchiveFileSize -= int64(n) * hdr.BlockSize
	if st.ArchiveFileSize < 0 {
		return &ErrMalformed{Name: st.Name, Reason: "extension blocks exceed member size"}
	}
	if !st.RealSizeSet {
		st.Size = Map(st.SparseMap).End()
	}
	return nil
}

func dumpStar(enc *hdr.Encoder, st *hdr.Stat) (*Dumped, error) {
	var (
		m    = Map(st.SparseMap)
		ast  = *st
		old  = len(st.Name) <= hdr.NameSize && len(m) > 0 // no prefix: entries fit in the header
		next int64
	)
	if old {
		next = cos.DivCeil(int64(max(0, len(m)-hdr.SparsesInStar)), hdr.SparsesInStarExt)
	} else {
		next = max(1, cos.DivCeil(int64(len(m)), hdr.SparsesInStarExt))
	}
	ast.Typeflag = hdr.Sparse
	ast.Size = st.ArchiveFileSize + next*hdr.BlockSize
	h, err := enc.StartHeader(&ast)
	if err != nil {
		return nil, err
	}

	var (
		b      = &h.Block
		i      int
		dumped = &Dumped{Header: h}
	)
	if old {
		if i, err = storeEntries(enc, m, 0, b.StarSparse, hdr.SparsesInStar); err != nil {
			return nil, err
		}
		b.SetStarIsExtended(i < len(m))
		if err := enc.OffToChars(b.StarRealsize(), st.Size); err != nil {
			return nil, err
		}
		copy(b.StarXMagic(), hdr.StarXMagic)
	}
	for range next {
		var eb hdr.Block
		if i, err = storeEntries(enc, m, i, eb.ExtSparse, hdr.SparsesInStarExt); err != nil {
			return nil, err
		}
		eb.SetExtIsExtended(i < len(m))
		dumped.Ext = append(dumped.Ext, eb)
	}
	return dumped, nil
}
