// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import (
	"time"
)

// Decoder holds the session-scoped state of the header reader
type Decoder struct {
	Incremental bool // OLDGNU: atime and ctime are in the header
	Silent      bool

	warnedBase64 bool
}

// DetectFormat recognizes the dialect from the magic and, for "ustar\0",
// from the STAR time fields: octal digits terminated by a blank
func DetectFormat(b *Block, extended bool) Format {
	switch {
	case string(b.get(fMagic)) == TMagic:
		atime, ctime := b.StarAtime(), b.StarCtime()
		if b.StarPrefix()[StarPrefix-1] == 0 &&
			isOctal(atime[0]) && atime[11] == ' ' &&
			isOctal(ctime[0]) && ctime[11] == ' ' {
			return FormatSTAR
		}
		if extended {
			return FormatPOSIX
		}
		return FormatUSTAR
	case string(b[fMagic.off:fMagic.off+len(OldGNUMagic)]) == OldGNUMagic:
		return FormatOldGNU
	default:
		return FormatV7
	}
}

// IsExtendedType: records that carry data for the next (real) header
func IsExtendedType(typeflag byte) bool {
	switch typeflag {
	case LongName, LongLink, XHdType, XGlType, SolarisX:
		return true
	}
	return false
}

// DecodeSize decodes the size field; links are stored with zero size
func (d *Decoder) DecodeSize(b *Block) (int64, error) {
	if b.Typeflag() == LnkType {
		return 0, nil
	}
	return d.OffFromChars(b.SizeField())
}

// DecodeNames assigns the member and link names: GNU long-name records
// take precedence; otherwise "ustar\0" archives prepend the prefix
func DecodeNames(b *Block, st *Stat, longName, longLink *string) {
	var name string
	if longName != nil {
		name = *longName
	} else {
		name = b.Name()
		if prefix := b.Prefix(); prefix != "" && string(b.get(fMagic)) == TMagic {
			name = prefix + "/" + name
		}
	}
	st.SetName(name)
	if longLink != nil {
		st.LinkName = *longLink
	} else {
		st.LinkName = b.Linkname()
	}
}

// DecodeHeader decodes the numeric and string fields of a verified header;
// the extended header (if any) and sparse fixups are applied by the caller
func (d *Decoder) DecodeHeader(b *Block, st *Stat, extended bool) (err error) {
	format := DetectFormat(b, extended)
	st.Format = format
	st.Typeflag = b.Typeflag()

	if st.Size, err = d.DecodeSize(b); err != nil {
		return err
	}
	if st.Mode, err = d.FromChars(b.ModeField(), ModeT); err != nil {
		return err
	}
	st.Mode &= SIFMT | ModeAll
	if st.Mode&SIFMT == 0 {
		st.Mode |= TypeMode(st.Typeflag)
	}
	mtime, err := d.TimeFromChars(b.MtimeField())
	if err != nil {
		return err
	}
	st.Mtime = time.Unix(mtime, 0)
	st.Uname, st.Gname = b.Uname(), b.Gname()

	switch {
	case format == FormatOldGNU && d.Incremental:
		if st.Atime, err = d.timeField(b.GNUAtime()); err != nil {
			return err
		}
		if st.Ctime, err = d.timeField(b.GNUCtime()); err != nil {
			return err
		}
	case format == FormatSTAR:
		if st.Atime, err = d.timeField(b.StarAtime()); err != nil {
			return err
		}
		if st.Ctime, err = d.timeField(b.StarCtime()); err != nil {
			return err
		}
	}

	if st.UID, err = d.FromChars(b.UIDField(), UIDT); err != nil {
		return err
	}
	if st.GID, err = d.FromChars(b.GIDField(), GIDT); err != nil {
		return err
	}
	st.Devmajor, st.Devminor = 0, 0
	if format != FormatV7 && (st.Typeflag == ChrType || st.Typeflag == BlkType) {
		if st.Devmajor, err = d.FromChars(b.DevmajorField(), MajorT); err != nil {
			return err
		}
		if st.Devminor, err = d.FromChars(b.DevminorField(), MinorT); err != nil {
			return err
		}
	}
	if st.Typeflag == MultiVol {
		if st.Offset, err = d.OffFromChars(b.GNUOffset()); err != nil {
			return err
		}
	}
	st.ArchiveFileSize = st.Size
	return nil
}

func (d *Decoder) timeField(field []byte) (time.Time, error) {
	v, err := d.TimeFromChars(field)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}
