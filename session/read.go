// Package session drives reading and writing of whole archives: header
// sequencing, member data, end-of-archive, volume labels and multi-volume
// continuation, on top of the record buffer and the header codecs
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"bytes"
	"io"
	"math"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/sparse"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

// member is the one whose header was read last
type member struct {
	st      *hdr.Stat
	data    io.Reader // lazily
	blk     hdr.Block
	dialect sparse.Dialect
	size    int64 // member data that follows the header records
	block   int64 // ordinal of the first header record
	volno   int
	sparse  bool
	mapped  bool // sparse map complete
	done    bool // data consumed or skipped
}

// dataReader routes archive-scoped errors to Fatal
type dataReader struct {
	s *Session
	r io.Reader
}

func (dr *dataReader) Read(p []byte) (n int, err error) {
	n, err = dr.r.Read(p)
	if err != nil && err != io.EOF && !errors.Is(err, io.ErrUnexpectedEOF) {
		err = dr.s.Fatal(err)
	}
	return n, err
}

// Stat is the metadata of the current member, nil if none
func (s *Session) Stat() *hdr.Stat {
	if s.cur == nil {
		return nil
	}
	return s.cur.st
}

// ReadHeader reads the next header. Unless `raw`, the records that belong
// to it are consumed first: GNU long names ('L', 'K'), per-member ('x', 'X')
// and global ('g') extended headers, and the member's metadata is complete
// on return (extended header applied, sparse fixups done). On success the
// cursor is at the member data; ZeroBlock and Failure leave it at the
// offending block. The returned error is member-scoped unless the session
// is dead (see Fatal).
func (s *Session) ReadHeader(raw bool) (hdr.Status, error) {
	if err := s.check(false); err != nil {
		return hdr.StatusFailure, err
	}
	s.cur = nil
	var (
		longName, longLink *string
		xbuf               []byte
		status             = hdr.StatusSuccess
		block              = int64(-1)
		volno              int
	)
	for {
		blk, err := s.rb.FindNextBlock()
		if err != nil {
			return hdr.StatusFailure, s.Fatal(err)
		}
		if blk == nil {
			if block >= 0 {
				return hdr.StatusEndOfFile, s.memberErr("eof", errors.New("Unexpected EOF in archive"))
			}
			return hdr.StatusEndOfFile, nil
		}
		if block < 0 {
			block, volno = s.rb.CurrentBlockOrdinal(), s.rb.Volno()
		}
		if st, err := s.dec.VerifyChecksum(blk); st != hdr.StatusSuccess {
			return st, err
		}
		hb := *blk
		size, err := s.dec.DecodeSize(&hb)
		if err != nil {
			return hdr.StatusFailure, err
		}
		typeflag := hb.Typeflag()
		extended := !raw && hdr.IsExtendedType(typeflag)
		if extended && size > maxExtendedSize {
			return hdr.StatusFailure, errors.Errorf("%s: extended header too big (%s)", hb.Name(), cos.ToSizeIEC(size, 1))
		}
		s.rb.SetNextBlockAfter(blk)
		if !extended {
			return status, s.startMember(&hb, block, volno, raw, longName, longLink, xbuf)
		}

		buf, err := s.readRecord(size)
		if err != nil {
			if s.fatal != nil {
				return hdr.StatusFailure, err
			}
			return hdr.StatusEndOfFile, s.memberErr("eof", errors.Wrap(err, "Unexpected EOF in archive"))
		}
		status = hdr.StatusSuccessExtended
		switch typeflag {
		case hdr.LongName:
			name := cstr(buf)
			longName = &name
		case hdr.LongLink:
			link := cstr(buf)
			longLink = &link
		case hdr.XGlType:
			if err := s.xdec.DecodeGlobal(buf); err != nil {
				s.memberErr("xheader", errors.Wrap(err, "global extended header"))
			}
			if label := s.xdec.Volume().Label; label != "" {
				s.label = label
			}
		default:
			xbuf = buf
		}
	}
}

// readRecord reads the data of an extended record
func (s *Session) readRecord(size int64) ([]byte, error) {
	buf := make([]byte, size)
	_, err := io.ReadFull(&dataReader{s: s, r: s.rb.NewDataReader(size)}, buf)
	return buf, err
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// startMember decodes the member header; a non-nil error means the member
// cannot be processed and must be skipped (value errors in its extended
// header are reported here and do not count)
func (s *Session) startMember(hb *hdr.Block, block int64, volno int, raw bool, longName, longLink *string, xbuf []byte) error {
	var (
		st = &hdr.Stat{}
		m  = &member{st: st, blk: *hb, block: block, volno: volno}
	)
	s.cur = m
	m.size, _ = s.dec.DecodeSize(hb)
	hdr.DecodeNames(hb, st, longName, longLink)
	if err := s.dec.DecodeHeader(hb, st, xbuf != nil); err != nil {
		return errors.Wrap(err, st.Name)
	}
	if !raw {
		if err := s.xdec.Apply(st, xbuf); err != nil {
			var errM *xhdr.ErrMalformed
			if errors.As(err, &errM) {
				return errors.Wrap(err, st.Name)
			}
			s.memberErr("xheader", errors.Wrap(err, st.Name))
		}
		st.XHeader = xbuf
		m.size = st.ArchiveFileSize
		if err := s.sparseHeader(m); err != nil {
			return err
		}
	}
	if m.size > 0 {
		s.rb.MvBegin(st.Name, m.size)
	} else {
		m.done = true
	}
	return nil
}

// sparseHeader: OLDGNU extension blocks precede the data and are read now;
// STAR extension blocks and the pax 1.0 map are part of the data and wait
// for it to be read (see SparseMap)
func (s *Session) sparseHeader(m *member) error {
	d, ok := sparse.Detect(m.st)
	if !ok {
		return nil
	}
	m.sparse, m.dialect = true, d
	if err := d.FixupHeader(s.dec, &m.blk, m.st); err != nil {
		return errors.Wrap(err, m.st.Name)
	}
	m.size = m.st.ArchiveFileSize
	switch {
	case d.Kind == sparse.KindOldGNU:
		ext := &dataReader{s: s, r: s.rb.NewDataReader(math.MaxInt64)}
		m.mapped = true
		if err := d.DecodeHeader(s.dec, &m.blk, m.st, ext); err != nil {
			return err
		}
	case d.Kind == sparse.KindPax && d.Major == 0:
		m.mapped = true
		return d.DecodeHeader(s.dec, &m.blk, m.st, nil)
	}
	return nil
}

// Next advances to the next member, skipping whatever is left of the
// current one, and returns its metadata; io.EOF at the end of the archive.
// Bad headers are reported and skipped over; errors returned here are
// archive-scoped.
func (s *Session) Next() (*hdr.Stat, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	if err := s.SkipMember(); err != nil && s.fatal != nil {
		return nil, err
	}
	lone := int64(-1)
	for {
		status, err := s.ReadHeader(false)
		if s.fatal != nil {
			return nil, s.fatal
		}
		if lone >= 0 && status != hdr.StatusZeroBlock {
			if status == hdr.StatusSuccess || status == hdr.StatusSuccessExtended {
				nlog.Warningf("A lone zero block at %d", lone)
			}
			lone = -1
		}
		switch status {
		case hdr.StatusSuccess, hdr.StatusSuccessExtended:
			prev := s.prev
			s.prev = status
			if err != nil {
				s.memberErr("header", err)
				s.SkipMember()
				continue
			}
			if err := s.verifyLabel(prev); err != nil {
				return nil, s.Fatal(err)
			}
			s.index(s.cur.st, s.cur.block, s.cur.volno, "read")
			return s.cur.st, nil
		case hdr.StatusZeroBlock:
			if s.mode == ModeUpdate {
				return nil, io.EOF // appending starts here
			}
			at := s.rb.CurrentBlockOrdinal()
			s.skipBlock()
			if s.cfg.IgnoreZeros {
				continue
			}
			if lone >= 0 {
				return nil, io.EOF
			}
			lone = at
		case hdr.StatusEndOfFile:
			return nil, io.EOF
		default:
			switch s.prev {
			case hdr.StatusUnread:
				if err != nil {
					err = errors.Wrapf(ErrNotTar, "%s (%v)", s.name, err)
				} else {
					err = errors.Wrap(ErrNotTar, s.name)
				}
				return nil, s.Fatal(err)
			case hdr.StatusFailure:
				// in the middle of a cascade of bad headers
			default:
				s.memberErr("resync", errors.Errorf("Skipping to next header (block %d: %v)", s.rb.CurrentBlockOrdinal(), err))
			}
			s.prev = hdr.StatusFailure
			s.skipBlock()
		}
	}
}

func (s *Session) skipBlock() {
	if blk, err := s.rb.FindNextBlock(); err == nil && blk != nil {
		s.rb.SetNextBlockAfter(blk)
	}
}

// SkipMember moves past the unread data of the current member
func (s *Session) SkipMember() (err error) {
	m := s.cur
	if m == nil || m.done {
		return nil
	}
	m.done = true
	if m.data != nil {
		_, err = io.Copy(io.Discard, m.data)
	} else {
		err = s.fail(s.rb.SkipData(m.size))
	}
	s.rb.MvEnd()
	if err != nil && s.fatal == nil {
		err = s.memberErr("eof", errors.Wrapf(err, "%s: Unexpected EOF in archive", m.st.Name))
	}
	return err
}

// SkipFile moves the cursor past `size` bytes of data (rounded up to blocks)
func (s *Session) SkipFile(size int64) error {
	if err := s.check(false); err != nil {
		return err
	}
	if err := s.rb.SkipData(size); err != nil {
		if cos.IsEOF(err) {
			return s.memberErr("eof", errors.Wrap(err, "Unexpected EOF in archive"))
		}
		return s.Fatal(err)
	}
	return nil
}

func (s *Session) data() io.Reader {
	m := s.cur
	if m.data == nil {
		m.data = &dataReader{s: s, r: s.rb.NewDataReader(m.size)}
	}
	return m.data
}

// DataReader returns the stored data of the current member: the file
// contents, or the concatenated data regions of a sparse member
func (s *Session) DataReader() (io.Reader, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	m := s.cur
	if m == nil || m.done {
		return nil, errors.New("no member data to read")
	}
	if m.sparse {
		if err := s.decodeMap(m); err != nil {
			return nil, err
		}
	}
	return s.data(), nil
}

// SparseMap returns the data regions of the current member, reading the
// map from the member data if it is stored there; nil if not sparse
func (s *Session) SparseMap() (sparse.Map, error) {
	m := s.cur
	if m == nil || !m.sparse {
		return nil, nil
	}
	if err := s.decodeMap(m); err != nil {
		return nil, err
	}
	return sparse.Map(m.st.SparseMap), nil
}

func (s *Session) decodeMap(m *member) error {
	if m.mapped {
		return nil
	}
	m.mapped = true
	if err := m.dialect.DecodeHeader(s.dec, &m.blk, m.st, s.data()); err != nil {
		if s.fatal != nil {
			return s.fatal
		}
		return s.memberErr("sparse", errors.Wrap(err, m.st.Name))
	}
	return nil
}

// ExtractTo copies the data of the current member to `w`. Sparse members
// are expanded: holes are seeked over (and the file truncated to its size)
// when `w` is seekable, written as zeros otherwise.
func (s *Session) ExtractTo(w io.Writer) (err error) {
	if err := s.check(false); err != nil {
		return err
	}
	m := s.cur
	if m == nil {
		return errors.New("no member to extract")
	}
	if m.done {
		return nil
	}
	switch {
	case !m.sparse:
		var n int64
		n, err = io.Copy(w, s.data())
		if err == nil && n < m.size {
			err = io.ErrUnexpectedEOF
		}
	default:
		if err = s.decodeMap(m); err != nil {
			break
		}
		err = m.dialect.Extract(sparse.NewWriter(w), m.st, s.data())
	}
	switch {
	case s.fatal != nil:
		return s.fatal
	case err == nil:
		return s.SkipMember()
	case cos.IsEOF(err):
		m.done = true
		s.rb.MvEnd()
		return s.memberErr("eof", errors.Wrapf(err, "%s: Unexpected EOF in archive", m.st.Name))
	default:
		nlog.Errorln(err)
		s.SkipMember()
		return err
	}
}

// verifyLabel checks the volume label of the archive, once, at its first member
func (s *Session) verifyLabel(prev hdr.Status) error {
	st := s.cur.st
	if st.Typeflag == hdr.VolHeader {
		s.label = st.Name
	}
	if s.cfg.Label == "" || prev != hdr.StatusUnread {
		return nil
	}
	if s.label == "" {
		return errors.Errorf("Archive not labeled to match %q", s.cfg.Label)
	}
	return s.checkLabel(s.label)
}
