// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import (
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/pkg/errors"
)

// Encoder holds the session-scoped state of the header writer
type Encoder struct {
	Now          func() time.Time
	SubstUID     func() int64 // defaults to the uid of "nobody"
	SubstGID     func() int64
	Format       Format
	Incremental  bool // OLDGNU/GNU: store atime and ctime in the header
	NumericOwner bool

	warnedNegOctal bool
}

// Header is the outcome of StartHeader: the member's own block plus the
// records that must precede it in the archive
type Header struct {
	LongLink string   // GNU: emit a 'K' record first
	LongName string   // GNU: emit an 'L' record first
	XKeys    []string // POSIX: keywords for the member's extended header
	Block    Block
}

func NewEncoder(format Format) *Encoder {
	if format == FormatDefault {
		format = FormatGNU
	}
	return &Encoder{Format: format, Now: time.Now}
}

// StartHeader builds the header block for `st` without its checksum
// (see FinishHeader); fields that do not fit are reported via the Header
// prologue (GNU long name records, POSIX keywords) or as errors
func (e *Encoder) StartHeader(st *Stat) (*Header, error) {
	h := &Header{}
	if err := e.headerName(h, st); err != nil {
		return nil, err
	}
	if err := e.headerLink(h, st); err != nil {
		return nil, err
	}
	b := &h.Block

	mode := st.Mode
	switch e.Format {
	case FormatOldGNU, FormatSTAR:
	default:
		mode &= ModeAll
	}
	if err := e.ToChars(b.ModeField(), mode, ModeT, nil); err != nil {
		return nil, err
	}

	if err := e.posixOr(h, "uid", st.UID, MaxOctal7, b.UIDField(), UIDT, e.substUID); err != nil {
		return nil, err
	}
	if err := e.posixOr(h, "gid", st.GID, MaxOctal7, b.GIDField(), GIDT, e.substGID); err != nil {
		return nil, err
	}
	if err := e.posixOr(h, "size", st.Size, MaxOctal11, b.SizeField(), OffT, nil); err != nil {
		return nil, err
	}

	mtime := st.Mtime.Unix()
	if e.Format == FormatPOSIX && (mtime < 0 || mtime > MaxOctal11 || st.Mtime.Nanosecond() != 0) {
		h.XKeys = append(h.XKeys, "mtime")
		mtime = max(0, min(mtime, MaxOctal11))
	}
	if err := e.TimeToChars(b.MtimeField(), mtime); err != nil {
		return nil, err
	}

	typeflag := st.Typeflag
	if typeflag == 0 || typeflag == ARegType {
		typeflag = ModeType(st.Mode)
	}
	if typeflag == ChrType || typeflag == BlkType {
		if err := e.posixOr(h, "devmajor", st.Devmajor, MaxOctal7, b.DevmajorField(), MajorT, nil); err != nil {
			return nil, err
		}
		if err := e.posixOr(h, "devminor", st.Devminor, MaxOctal7, b.DevminorField(), MinorT, nil); err != nil {
			return nil, err
		}
	} else {
		toOctal(0, b.DevmajorField()[:7])
		toOctal(0, b.DevminorField()[:7])
	}

	switch e.Format {
	case FormatPOSIX:
		if !st.Atime.IsZero() {
			h.XKeys = append(h.XKeys, "atime")
		}
		if !st.Ctime.IsZero() {
			h.XKeys = append(h.XKeys, "ctime")
		}
	case FormatOldGNU, FormatGNU:
		if e.Incremental {
			if err := e.TimeToChars(b.GNUAtime(), orMtime(st.Atime, st)); err != nil {
				return nil, err
			}
			if err := e.TimeToChars(b.GNUCtime(), orMtime(st.Ctime, st)); err != nil {
				return nil, err
			}
		}
	case FormatSTAR:
		if err := e.starTime(b.StarAtime(), orMtime(st.Atime, st)); err != nil {
			return nil, err
		}
		if err := e.starTime(b.StarCtime(), orMtime(st.Ctime, st)); err != nil {
			return nil, err
		}
	}

	if e.Format == FormatV7 && typeflag == RegType {
		typeflag = ARegType
	}
	b.SetTypeflag(typeflag)
	b.SetMagic(e.Format)

	if e.Format != FormatV7 && !e.NumericOwner {
		if e.Format == FormatPOSIX && (len(st.Uname) >= UnameSize || !IsASCII(st.Uname)) {
			h.XKeys = append(h.XKeys, "uname")
		} else {
			copyStr(b.get(fUname)[:UnameSize-1], st.Uname)
		}
		if e.Format == FormatPOSIX && (len(st.Gname) >= GnameSize || !IsASCII(st.Gname)) {
			h.XKeys = append(h.XKeys, "gname")
		} else {
			copyStr(b.get(fGname)[:GnameSize-1], st.Gname)
		}
	}
	return h, nil
}

// POSIX: out-of-octal-range values go to the extended header
func (e *Encoder) posixOr(h *Header, keyword string, v, maxOctal int64, dst []byte, t NumType, subst func() int64) error {
	if e.Format == FormatPOSIX && (v > maxOctal || v < 0) {
		h.XKeys = append(h.XKeys, keyword)
		return nil
	}
	return e.ToChars(dst, v, t, subst)
}

// STAR time fields: octal digits and a trailing blank (see DetectFormat)
func (e *Encoder) starTime(dst []byte, v int64) error {
	if v < 0 || !ToCharsU(dst, uint64(v)) {
		return &ErrOutOfRange{What: TimeT.Name, Value: v, Min: "0", Max: strconv.Itoa(MaxOctal11)}
	}
	dst[len(dst)-1] = ' '
	return nil
}

func orMtime(t time.Time, st *Stat) int64 {
	if t.IsZero() {
		return st.Mtime.Unix()
	}
	return t.Unix()
}

func (e *Encoder) headerName(h *Header, st *Stat) error {
	var (
		name = st.Name
		b    = &h.Block
	)
	switch {
	case e.Format == FormatPOSIX && !IsASCII(name):
		h.XKeys = append(h.XKeys, "path")
	case len(name) <= NameSize:
	default:
		switch e.Format {
		case FormatPOSIX:
			h.XKeys = append(h.XKeys, "path")
		case FormatV7:
			return nameTooLong(name, NameSize-1)
		case FormatUSTAR, FormatSTAR:
			return e.splitName(b, name)
		case FormatOldGNU, FormatGNU:
			h.LongName = name
		}
	}
	b.SetName(name)
	return nil
}

// USTAR: name = prefix + '/' + name
func (e *Encoder) splitName(b *Block, name string) error {
	prefixMax := PrefixSize
	if e.Format == FormatSTAR {
		prefixMax = StarPrefix - 1 // prefix[130] must stay NUL
	}
	length := len(name)
	if length > prefixMax+NameSize+1 {
		return nameTooLong(name, prefixMax+NameSize+1)
	}
	i := min(length-1, prefixMax)
	for ; i > 0; i-- {
		if name[i] == '/' {
			break
		}
	}
	if i == 0 || length-i-1 > NameSize {
		return errors.Wrapf(ErrNameTooLong, "%s: cannot be split; not dumped", name)
	}
	copyStr(b.get(fPrefix)[:prefixMax], name[:i])
	b.SetName(name[i+1:])
	return nil
}

func (e *Encoder) headerLink(h *Header, st *Stat) error {
	link := st.LinkName
	limit := NameSize
	if e.Format == FormatOldGNU {
		limit--
	}
	switch {
	case e.Format == FormatPOSIX && (len(link) > NameSize || !IsASCII(link)):
		h.XKeys = append(h.XKeys, "linkpath")
	case len(link) <= limit:
	case e.Format.IsGNU():
		h.LongLink = link
	default:
		return errors.Wrapf(ErrLinkTooLong, "%s: not dumped", link)
	}
	h.Block.SetLinkname(link)
	return nil
}

// PrivateHeader starts a header for a record that is not a member of its own:
// long names, extended headers, volume labels
func (e *Encoder) PrivateHeader(name string, size int64, typeflag byte) (*Block, error) {
	b := &Block{}
	b.SetName(name)
	if err := e.OffToChars(b.SizeField(), size); err != nil {
		return nil, err
	}
	if err := e.TimeToChars(b.MtimeField(), e.Now().Unix()); err != nil {
		return nil, err
	}
	mode := int64(SIFREG | 0o644)
	if e.Format != FormatOldGNU {
		mode &= ModeAll
	}
	if err := e.ToChars(b.ModeField(), mode, ModeT, nil); err != nil {
		return nil, err
	}
	if err := e.ToChars(b.UIDField(), int64(os.Getuid()), UIDT, e.substUID); err != nil {
		return nil, err
	}
	if err := e.ToChars(b.GIDField(), int64(os.Getgid()), GIDT, e.substGID); err != nil {
		return nil, err
	}
	toOctal(0, b.DevmajorField()[:7])
	toOctal(0, b.DevminorField()[:7])
	copy(b.get(fMagic), TMagic)
	copy(b.get(fVersion), TVersion)
	switch typeflag {
	case LongName, LongLink, MultiVol, VolHeader:
		copy(b[fMagic.off:], OldGNUMagic)
	}
	b.SetTypeflag(typeflag)
	return b, nil
}

//
// "nobody"
//

func (e *Encoder) substUID() int64 {
	if e.SubstUID != nil {
		return e.SubstUID()
	}
	return lookupNobody(func() (string, error) {
		u, err := user.Lookup("nobody")
		if err != nil {
			return "", err
		}
		return u.Uid, nil
	})
}

func (e *Encoder) substGID() int64 {
	if e.SubstGID != nil {
		return e.SubstGID()
	}
	return lookupNobody(func() (string, error) {
		g, err := user.LookupGroup("nobody")
		if err != nil {
			return "", err
		}
		return g.Gid, nil
	})
}

const idNobody = 65534

func lookupNobody(lookup func() (string, error)) int64 {
	s, err := lookup()
	if err != nil {
		nlog.Warningln("cannot resolve \"nobody\":", err)
		return idNobody
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return idNobody
	}
	return id
}
