// Package session drives reading and writing of whole archives: header
// sequencing, member data, end-of-archive, volume labels and multi-volume
// continuation, on top of the record buffer and the header codecs
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/rbuf"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

// volumeLabel names volume `volno` of an archive labeled `label`
func volumeLabel(label string, volno int) string {
	if volno > 1 {
		label += " Volume " + strconv.Itoa(volno)
	}
	if len(label) > hdr.NameSize {
		label = label[:hdr.NameSize]
	}
	return label
}

// labelMatches: `pattern` is a shell pattern; later volumes carry the
// " Volume N" suffix
func labelMatches(pattern, label string) bool {
	if ok, _ := path.Match(pattern, label); ok || pattern == label {
		return true
	}
	i := strings.LastIndex(label, " Volume ")
	if i < 0 {
		return false
	}
	if _, err := strconv.Atoi(label[i+len(" Volume "):]); err != nil {
		return false
	}
	ok, _ := path.Match(pattern, label[:i])
	return ok || pattern == label[:i]
}

func (s *Session) checkLabel(label string) error {
	if s.cfg.Label == "" || labelMatches(s.cfg.Label, label) {
		return nil
	}
	return errors.Errorf("Volume %q does not match %q", label, s.cfg.Label)
}

// writeLabel writes the volume label: a 'V' header, or for POSIX a global
// extended header with GNU.volume.label
func (s *Session) writeLabel(label string) error {
	if label == "" {
		return nil
	}
	if s.format == hdr.FormatPOSIX {
		xh := &xhdr.Header{}
		s.xenc.Store(xh, "GNU.volume.label", nil, &xhdr.VolumeInfo{Label: label})
		return s.writeRecord(s.xenc.GlobalName(), hdr.XGlType, xh.Bytes())
	}
	return s.writeRecord(label, hdr.VolHeader, nil)
}

// seekEnd reads the archive to its end-of-archive marker and switches to
// writing there
func (s *Session) seekEnd() error {
	for {
		_, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	s.cur = nil
	if err := s.rb.StartWriting(); err != nil {
		return err
	}
	s.eot = false
	return nil
}

// volumeHook runs at the start of every volume after the first
func (s *Session) volumeHook(b *rbuf.Buffer, volno int, mv *rbuf.InFlight) (err error) {
	if b.Writing() {
		err = s.writeVolumeHeaders(volno, mv)
	} else {
		err = s.readVolumeHeaders(volno, mv)
	}
	if err != nil && !rbuf.IsFatal(err) {
		err = errors.Wrapf(rbuf.ErrVolumeAbort, "%s: %v", b.Name(), err)
	}
	return err
}

// writeVolumeHeaders: label, then the continuation header of the member in
// flight: 'M' (GNU) or GNU.volume.* keywords in a global header (POSIX)
func (s *Session) writeVolumeHeaders(volno int, mv *rbuf.InFlight) error {
	if s.cfg.Label != "" {
		if err := s.writeLabel(volumeLabel(s.cfg.Label, volno)); err != nil {
			return err
		}
	}
	if mv == nil {
		return nil
	}
	if s.format == hdr.FormatPOSIX {
		var (
			xh = &xhdr.Header{}
			vi = &xhdr.VolumeInfo{Filename: mv.Name, Size: mv.Left(), Offset: mv.Offset}
		)
		s.xenc.Store(xh, "GNU.volume.filename", nil, vi)
		s.xenc.Store(xh, "GNU.volume.size", nil, vi)
		s.xenc.Store(xh, "GNU.volume.offset", nil, vi)
		return s.writeRecord(s.xenc.GlobalName(), hdr.XGlType, xh.Bytes())
	}
	name := mv.Name
	if len(name) > hdr.NameSize {
		nlog.Warningf("%s: file name too long to be stored in a GNU multivolume header, truncated", name)
		name = name[:hdr.NameSize]
	}
	b, err := s.enc.PrivateHeader(name, mv.Left(), hdr.MultiVol)
	if err != nil {
		return err
	}
	if err := s.enc.OffToChars(b.GNUOffset(), mv.Offset); err != nil {
		return err
	}
	hdr.FinishHeader(b)
	return s.write(b[:])
}

// readVolumeHeaders consumes the label and continuation headers at the
// start of a volume and checks them against the member in flight
func (s *Session) readVolumeHeaders(volno int, mv *rbuf.InFlight) error {
	var (
		cont *hdr.Stat
		pax  bool
	)
	s.xdec.ResetVolume()
	for {
		blk, err := s.rb.FindNextBlock()
		if err != nil {
			return err
		}
		if blk == nil {
			break
		}
		if status, _ := s.dec.VerifyChecksum(blk); status != hdr.StatusSuccess {
			break
		}
		typeflag := blk.Typeflag()
		if typeflag != hdr.VolHeader && typeflag != hdr.XGlType && typeflag != hdr.MultiVol {
			break
		}
		var (
			hb = *blk
			st = &hdr.Stat{}
		)
		hdr.DecodeNames(&hb, st, nil, nil)
		if err := s.dec.DecodeHeader(&hb, st, false); err != nil {
			return errors.Wrapf(err, "volume %d header", volno)
		}
		s.rb.SetNextBlockAfter(blk)
		switch typeflag {
		case hdr.VolHeader:
			if err := s.checkLabel(st.Name); err != nil {
				return err
			}
			s.label = st.Name
			if err := s.rb.SkipData(st.Size); err != nil {
				return err
			}
		case hdr.XGlType:
			if st.Size > maxExtendedSize {
				return errors.Errorf("volume %d: global extended header too big", volno)
			}
			buf := make([]byte, st.Size)
			if _, err := io.ReadFull(s.rb.NewDataReader(st.Size), buf); err != nil {
				return err
			}
			if err := s.xdec.DecodeGlobal(buf); err != nil {
				s.memberErr("xheader", errors.Wrapf(err, "volume %d", volno))
			}
			pax = true
			if label := s.xdec.Volume().Label; label != "" {
				if err := s.checkLabel(label); err != nil {
					return err
				}
				s.label = label
			}
		case hdr.MultiVol:
			cont = st
		}
	}
	if vi := s.xdec.Volume(); pax && cont == nil && vi.Filename != "" {
		cont = &hdr.Stat{Name: vi.Filename, Size: vi.Size, Offset: vi.Offset}
	}
	return s.checkContinuation(mv, cont)
}

func (s *Session) checkContinuation(mv *rbuf.InFlight, cont *hdr.Stat) error {
	switch {
	case mv == nil && cont == nil:
		return nil
	case mv == nil:
		nlog.Warningf("%s: continuation without a member in flight, skipping %d bytes", cont.Name, cont.Size)
		return s.rb.SkipData(cont.Size)
	case cont == nil:
		return errors.Errorf("%s is not continued on this volume", mv.Name)
	}
	name := mv.Name
	if len(cont.Name) == hdr.NameSize && len(name) > hdr.NameSize {
		name = name[:hdr.NameSize]
	}
	switch {
	case cont.Name != name:
		return errors.Errorf("%s is not continued on this volume", mv.Name)
	case cont.Size+cont.Offset != mv.Size:
		return errors.Errorf("%s is the wrong size (%d != %d + %d)", mv.Name, mv.Size, cont.Size, cont.Offset)
	case cont.Offset != mv.Offset:
		return errors.Errorf("This volume is out of sequence (%d != %d)", cont.Offset, mv.Offset)
	}
	return nil
}
