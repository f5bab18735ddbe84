// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import "bytes"

const (
	BlockSize = 512

	NameSize     = 100
	PrefixSize   = 155
	StarPrefix   = 131
	UnameSize    = 32
	GnameSize    = 32
	LongLinkName = "././@LongLink"

	// entries per header/extension block
	SparsesInOldGNU    = 4
	SparsesInExtension = 21
	SparsesInStar      = 4
	SparsesInStarExt   = 21
)

// magic
const (
	TMagic      = "ustar\x00"
	TVersion    = "00"
	OldGNUMagic = "ustar  \x00" // magic and version in one blow
	StarXMagic  = "tar\x00"
)

// typeflags
const (
	RegType   = '0'
	ARegType  = '\x00'
	LnkType   = '1'
	SymType   = '2'
	ChrType   = '3'
	BlkType   = '4'
	DirType   = '5'
	FifoType  = '6'
	ContType  = '7'
	XHdType   = 'x'
	XGlType   = 'g'
	SolarisX  = 'X'
	DumpDir   = 'D'
	LongLink  = 'K'
	LongName  = 'L'
	MultiVol  = 'M'
	Names     = 'N'
	Sparse    = 'S'
	VolHeader = 'V'
)

// mode bits
const (
	TSUID   = 0o4000
	TSGID   = 0o2000
	TSVTX   = 0o1000
	ModeAll = 0o7777
)

// Format is the archive dialect
type Format int

const (
	FormatDefault Format = iota
	FormatV7
	FormatOldGNU
	FormatUSTAR
	FormatPOSIX
	FormatSTAR
	FormatGNU
)

var formatNames = [...]string{"default", "v7", "oldgnu", "ustar", "posix", "star", "gnu"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

func (f Format) IsGNU() bool { return f == FormatGNU || f == FormatOldGNU }

// ParseFormat accepts the dialect names plus "pax" as a POSIX alias
func ParseFormat(s string) (Format, bool) {
	if s == "pax" {
		return FormatPOSIX, true
	}
	for i, n := range formatNames {
		if n == s {
			return Format(i), true
		}
	}
	return FormatDefault, false
}

type field struct{ off, size int }

// POSIX header
var (
	fName     = field{0, 100}
	fMode     = field{100, 8}
	fUID      = field{108, 8}
	fGID      = field{116, 8}
	fSize     = field{124, 12}
	fMtime    = field{136, 12}
	fChksum   = field{148, 8}
	fTypeflag = field{156, 1}
	fLinkname = field{157, 100}
	fMagic    = field{257, 6}
	fVersion  = field{263, 2}
	fUname    = field{265, 32}
	fGname    = field{297, 32}
	fDevmajor = field{329, 8}
	fDevminor = field{337, 8}
	fPrefix   = field{345, 155}
)

// OLDGNU tail
var (
	fGNUAtime      = field{345, 12}
	fGNUCtime      = field{357, 12}
	fGNUOffset     = field{369, 12}
	fGNULongnames  = field{381, 4}
	fGNUSparse     = field{386, SparsesInOldGNU * 24}
	fGNUIsExtended = field{482, 1}
	fGNURealsize   = field{483, 12}

	fExtSparse     = field{0, SparsesInExtension * 24}
	fExtIsExtended = field{504, 1}
)

// STAR tail (both the plain and the in-header sparse variants)
var (
	fStarPrefix     = field{345, StarPrefix}
	fStarAtime      = field{476, 12}
	fStarCtime      = field{488, 12}
	fStarIsExtended = field{355, 1}
	fStarSparse     = field{356, SparsesInStar * 24}
	fStarRealsize   = field{452, 12}
	fStarOffset     = field{464, 12}
	fStarXMagic     = field{508, 4}
)

// Block is one raw header (or extension) block
type Block [BlockSize]byte

func (b *Block) get(f field) []byte { return b[f.off : f.off+f.size] }

func (b *Block) Reset() { *b = Block{} }

// string fields

func (b *Block) Name() string     { return cstr(b.get(fName)) }
func (b *Block) Linkname() string { return cstr(b.get(fLinkname)) }
func (b *Block) Uname() string    { return cstr(b.get(fUname)) }
func (b *Block) Gname() string    { return cstr(b.get(fGname)) }
func (b *Block) Prefix() string   { return cstr(b.get(fPrefix)) }
func (b *Block) Magic() string    { return string(b.get(fMagic)) }
func (b *Block) Version() string  { return string(b.get(fVersion)) }
func (b *Block) Typeflag() byte   { return b[fTypeflag.off] }

func (b *Block) SetName(s string)     { copyStr(b.get(fName), s) }
func (b *Block) SetLinkname(s string) { copyStr(b.get(fLinkname), s) }
func (b *Block) SetUname(s string)    { copyStr(b.get(fUname), s) }
func (b *Block) SetGname(s string)    { copyStr(b.get(fGname), s) }
func (b *Block) SetPrefix(s string)   { copyStr(b.get(fPrefix), s) }
func (b *Block) SetTypeflag(c byte)   { b[fTypeflag.off] = c }

func (b *Block) SetMagic(format Format) {
	switch format {
	case FormatOldGNU, FormatGNU:
		copy(b[fMagic.off:], OldGNUMagic)
	case FormatPOSIX, FormatUSTAR, FormatSTAR:
		copy(b.get(fMagic), TMagic)
		copy(b.get(fVersion), TVersion)
	}
}

// numeric field views (raw bytes; see FromChars)

func (b *Block) ModeField() []byte     { return b.get(fMode) }
func (b *Block) UIDField() []byte      { return b.get(fUID) }
func (b *Block) GIDField() []byte      { return b.get(fGID) }
func (b *Block) SizeField() []byte     { return b.get(fSize) }
func (b *Block) MtimeField() []byte    { return b.get(fMtime) }
func (b *Block) ChksumField() []byte   { return b.get(fChksum) }
func (b *Block) DevmajorField() []byte { return b.get(fDevmajor) }
func (b *Block) DevminorField() []byte { return b.get(fDevminor) }

// OLDGNU view

func (b *Block) GNUAtime() []byte        { return b.get(fGNUAtime) }
func (b *Block) GNUCtime() []byte        { return b.get(fGNUCtime) }
func (b *Block) GNUOffset() []byte       { return b.get(fGNUOffset) }
func (b *Block) GNULongnames() []byte    { return b.get(fGNULongnames) }
func (b *Block) GNURealsize() []byte     { return b.get(fGNURealsize) }
func (b *Block) GNUIsExtended() bool     { return b[fGNUIsExtended.off] != 0 }
func (b *Block) SetGNUIsExtended(v bool) { b[fGNUIsExtended.off] = b2u(v) }

// GNUSparse returns the i-th inline sparse entry (offset, numbytes) of an OLDGNU header
func (b *Block) GNUSparse(i int) SparseEntry { return entry(b.get(fGNUSparse), i) }

// sparse extension block view

func (b *Block) ExtSparse(i int) SparseEntry { return entry(b.get(fExtSparse), i) }
func (b *Block) ExtIsExtended() bool         { return b[fExtIsExtended.off] != 0 }
func (b *Block) SetExtIsExtended(v bool)     { b[fExtIsExtended.off] = b2u(v) }

// STAR views

func (b *Block) StarPrefix() []byte           { return b.get(fStarPrefix) }
func (b *Block) StarAtime() []byte            { return b.get(fStarAtime) }
func (b *Block) StarCtime() []byte            { return b.get(fStarCtime) }
func (b *Block) StarRealsize() []byte         { return b.get(fStarRealsize) }
func (b *Block) StarOffset() []byte           { return b.get(fStarOffset) }
func (b *Block) StarXMagic() []byte           { return b.get(fStarXMagic) }
func (b *Block) StarSparse(i int) SparseEntry { return entry(b.get(fStarSparse), i) }
func (b *Block) StarIsExtended() bool         { return b[fStarIsExtended.off] != 0 }
func (b *Block) SetStarIsExtended(v bool)     { b[fStarIsExtended.off] = b2u(v) }

// SparseEntry is a view of one on-disk (offset[12], numbytes[12]) pair
type SparseEntry struct {
	Offset   []byte
	Numbytes []byte
}

// unused entries are all-NUL
func (e SparseEntry) Empty() bool { return e.Numbytes[0] == 0 }

func entry(area []byte, i int) SparseEntry {
	p := area[i*24 : i*24+24]
	return SparseEntry{Offset: p[:12], Numbytes: p[12:24]}
}

//
// helpers
//

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// strncpy semantics: NUL-terminated unless `s` fills the field
func copyStr(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}

func b2u(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// IsZero reports whether all 512 bytes are NUL
func (b *Block) IsZero() bool { return *b == Block{} }
