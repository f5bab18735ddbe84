// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"io"
	"math"

	"github.com/NVIDIA/gotar/hdr"
	"github.com/pkg/errors"
)

type addStatus int

const (
	addOK addStatus = iota
	addFinish
	addFail
)

// addEntry appends one on-disk entry; an unused (NUL) entry ends the map
func addEntry(dec *hdr.Decoder, e hdr.SparseEntry, st *hdr.Stat, limit int64) addStatus {
	if e.Empty() {
		return addFinish
	}
	off, err := dec.OffFromChars(e.Offset)
	if err != nil {
		return addFail
	}
	n, err := dec.OffFromChars(e.Numbytes)
	if err != nil {
		return addFail
	}
	if off < 0 || n < 0 || off > math.MaxInt64-n || off+n > limit {
		return addFail
	}
	st.SparseMap = append(st.SparseMap, hdr.Region{Offset: off, Numbytes: n})
	return addOK
}

// storeEntries writes map entries starting at `i` into at most `n` slots;
// returns the index of the first entry not stored
func storeEntries(enc *hdr.Encoder, m Map, i int, slot func(int) hdr.SparseEntry, n int) (int, error) {
	for k := 0; k < n && i < len(m); k, i = k+1, i+1 {
		e := slot(k)
		if err := enc.OffToChars(e.Offset, m[i].Offset); err != nil {
			return i, err
		}
		if err := enc.OffToChars(e.Numbytes, m[i].Numbytes); err != nil {
			return i, err
		}
	}
	return i, nil
}

// readExt reads one extension block
func readExt(r io.Reader, st *hdr.Stat, n int) (*hdr.Block, error) {
	if n >= MaxExtBlocks {
		return nil, &ErrMalformed{Name: st.Name, Reason: "too many extension blocks"}
	}
	blk := &hdr.Block{}
	if _, err := io.ReadFull(r, blk[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "%s: sparse extension block %d", st.Name, n)
	}
	return blk, nil
}

//
// OLDGNU: 4 entries in the header, chained extension blocks of 21,
// the expanded size in the realsize field
//

func fixupOldGNU(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat) error {
	realsize, err := dec.OffFromChars(b.GNURealsize())
	st.ArchiveFileSize = st.Size
	if err != nil {
		return err
	}
	st.Size = max(0, realsize)
	if realsize < 0 {
		return &ErrMalformed{Name: st.Name, Reason: "negative real size"}
	}
	return nil
}

func decodeOldGNU(dec *hdr.Decoder, b *hdr.Block, st *hdr.Stat, r io.Reader) error {
	rc := addOK
	st.SparseMap = st.SparseMap[:0]
	for i := range hdr.SparsesInOldGNU {
		if rc = addEntry(dec, b.GNUSparse(i), st, st.Size); rc != addOK {
			break
		}
	}
	for n, ext := 0, b.GNUIsExtended(); rc == addOK && ext; n++ {
		eb, err := readExt(r, st, n)
		if err != nil {
			return err
		}
		for i := 0; i < hdr.SparsesInExtension && rc == addOK; i++ {
			rc = addEntry(dec, eb.ExtSparse(i), st, st.Size)
		}
		ext = eb.ExtIsExtended()
	}
	if rc == addFail {
		return &ErrMalformed{Name: st.Name, Reason: "invalid sparse map entry"}
	}
	return nil
}

func dumpOldGNU(enc *hdr.Encoder, st *hdr.Stat) (*Dumped, error) {
	var (
		m   = Map(st.SparseMap)
		ast = *st
	)
	ast.Typeflag = hdr.Sparse
	ast.Size = st.ArchiveFileSize
	h, err := enc.StartHeader(&ast)
	if err != nil {
		return nil, err
	}
	b := &h.Block
	if err := enc.OffToChars(b.GNURealsize(), st.Size); err != nil {
		return nil, err
	}
	i, err := storeEntries(enc, m, 0, b.GNUSparse, hdr.SparsesInOldGNU)
	if err != nil {
		return nil, err
	}
	b.SetGNUIsExtended(i < len(m))

	dumped := &Dumped{Header: h}
	for i < len(m) {
		var eb hdr.Block
		if i, err = storeEntries(enc, m, i, eb.ExtSparse, hdr.SparsesInExtension); err != nil {
			return nil, err
		}
		eb.SetExtIsExtended(i < len(m))
		dumped.Ext = append(dumped.Ext, eb)
	}
	return dumped, nil
}
