// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import (
	"strings"
	"time"
)

// file type bits of Stat.Mode (st_mode layout)
const (
	SIFMT   = 0o170000
	SIFSOCK = 0o140000
	SIFLNK  = 0o120000
	SIFREG  = 0o100000
	SIFBLK  = 0o060000
	SIFDIR  = 0o040000
	SIFCHR  = 0o020000
	SIFIFO  = 0o010000
)

// Status is the outcome of reading one header
type Status int

const (
	StatusUnread Status = iota
	StatusSuccess
	StatusSuccessExtended
	StatusZeroBlock
	StatusEndOfFile
	StatusFailure
)

var statusNames = [...]string{"unread", "success", "success-extended", "zero-block", "end-of-file", "failure"}

func (s Status) String() string { return statusNames[s] }

// Region is one non-hole byte range of a sparse file
type Region struct {
	Offset   int64 `json:"offset"`
	Numbytes int64 `json:"numbytes"`
}

// Stat is the decoded metadata of one archive member; it is allocated
// per member and owned by whoever processes that member
type Stat struct {
	Mtime time.Time `json:"mtime"`
	Atime time.Time `json:"atime,omitempty"`
	Ctime time.Time `json:"ctime,omitempty"`

	Name     string `json:"name"`
	OrigName string `json:"-"`
	LinkName string `json:"linkname,omitempty"`
	Uname    string `json:"uname,omitempty"`
	Gname    string `json:"gname,omitempty"`

	Mode     int64 `json:"mode"`
	UID      int64 `json:"uid"`
	GID      int64 `json:"gid"`
	Size     int64 `json:"size"`
	Devmajor int64 `json:"devmajor,omitempty"`
	Devminor int64 `json:"devminor,omitempty"`

	// stored (shrunken) size; differs from Size for sparse members
	ArchiveFileSize int64 `json:"archive_size"`
	Offset          int64 `json:"offset,omitempty"` // multi-volume continuation

	// sparse
	SparseMap      []Region `json:"sparse_map,omitempty"`
	SparseMapSize  int      `json:"-"` // GNU.sparse.numblocks
	SparseMajor    int      `json:"sparse_major,omitempty"`
	SparseMinor    int      `json:"sparse_minor,omitempty"`
	RealSize       int64    `json:"-"`
	RealSizeSet    bool     `json:"-"`
	SparseNameDone bool     `json:"-"`
	IsSparse       bool     `json:"sparse,omitempty"`

	// raw extended header of this member (on read), keywords to emit (on write)
	XHeader []byte `json:"-"`
	DumpDir []byte `json:"-"`

	Format           Format `json:"format"`
	Typeflag         byte   `json:"typeflag"`
	HadTrailingSlash bool   `json:"-"`
}

func (st *Stat) IsDir() bool { return st.Mode&SIFMT == SIFDIR || st.Typeflag == DirType }

// SetName assigns both the name and the original name, stripping trailing slashes
func (st *Stat) SetName(name string) {
	st.OrigName = name
	trimmed := strings.TrimRight(name, "/")
	if trimmed == "" && name != "" {
		trimmed = "/"
	}
	st.HadTrailingSlash = trimmed != name
	st.Name = trimmed
}

// TypeMode derives st_mode file type bits from a typeflag
func TypeMode(typeflag byte) int64 {
	switch typeflag {
	case RegType, ARegType, ContType, LnkType, Sparse:
		return SIFREG
	case SymType:
		return SIFLNK
	case ChrType:
		return SIFCHR
	case BlkType:
		return SIFBLK
	case DirType, DumpDir:
		return SIFDIR
	case FifoType:
		return SIFIFO
	}
	return 0
}

// ModeType derives the typeflag from st_mode bits
func ModeType(mode int64) byte {
	switch mode & SIFMT {
	case SIFLNK:
		return SymType
	case SIFCHR:
		return ChrType
	case SIFBLK:
		return BlkType
	case SIFDIR:
		return DirType
	case SIFIFO:
		return FifoType
	}
	return RegType
}

// IsASCII is true if `s` contains only 7-bit characters
func IsASCII(s string) bool {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
