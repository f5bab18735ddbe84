// Package session drives reading and writing of whole archives: header
// sequencing, member data, end-of-archive, volume labels and multi-volume
// continuation, on top of the record buffer and the header codecs
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"io"
	"os"
	"strings"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/sparse"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

var errEOT = errors.New("end of archive already written")

// trackWriter separates archive write errors (fatal) from source read errors
type trackWriter struct {
	w   io.WriteCloser
	err error
	n   int64
}

func (tw *trackWriter) Write(p []byte) (int, error) {
	if tw.err != nil {
		return 0, tw.err
	}
	n, err := tw.w.Write(p)
	tw.n += int64(n)
	tw.err = err
	return n, err
}

func (s *Session) checkWrite() error {
	if err := s.check(true); err != nil {
		return err
	}
	if s.eot {
		return errors.Wrap(errEOT, s.name)
	}
	return nil
}

// WriteHeader writes a member that has no data: directory, link, device,
// fifo (st.Size is ignored)
func (s *Session) WriteHeader(st *hdr.Stat) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	st.Size, st.ArchiveFileSize = 0, 0
	block, volno := s.rb.CurrentBlockOrdinal(), s.rb.Volno()
	h, err := s.enc.StartHeader(st)
	if err != nil {
		return s.memberErr("header", errors.Wrap(err, st.Name))
	}
	if err := s.writeHeader(st, h, nil); err != nil {
		return s.Fatal(err)
	}
	s.index(st, block, volno, "write")
	return nil
}

// WriteDir writes a directory member; the name gets its trailing slash
func (s *Session) WriteDir(st *hdr.Stat) error {
	st.Typeflag = hdr.DirType
	if st.Mode&hdr.SIFMT == 0 {
		st.Mode |= hdr.SIFDIR
	}
	if !strings.HasSuffix(st.Name, "/") {
		st.Name += "/"
	}
	return s.WriteHeader(st)
}

// WriteLink writes a symbolic link, or a hard link if st.Typeflag says so;
// st.LinkName is the target
func (s *Session) WriteLink(st *hdr.Stat) error {
	if st.Typeflag != hdr.LnkType {
		st.Typeflag = hdr.SymType
	}
	if st.LinkName == "" {
		return errors.Errorf("%s: empty link target", st.Name)
	}
	return s.WriteHeader(st)
}

// WriteMember writes a member with st.Size bytes of data read from `r`.
// A source that ends early is padded with zeros to keep the archive
// consistent, and the shortfall is reported as a member error.
func (s *Session) WriteMember(st *hdr.Stat, r io.Reader) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	st.ArchiveFileSize = st.Size
	block, volno := s.rb.CurrentBlockOrdinal(), s.rb.Volno()
	h, err := s.enc.StartHeader(st)
	if err != nil {
		return s.memberErr("header", errors.Wrap(err, st.Name))
	}
	if err := s.writeHeader(st, h, nil); err != nil {
		return s.Fatal(err)
	}
	err = s.writeData(st, st.Size, func(w io.Writer) error {
		_, err := io.CopyN(w, r, st.Size)
		return err
	})
	s.index(st, block, volno, "write")
	return err
}

// WriteSparse writes the first st.Size bytes of `f` as a sparse member: the
// map is scanned from the file and stored in the sparse dialect of the
// archive format, followed by the data regions. Formats without sparse
// support store the file expanded.
func (s *Session) WriteSparse(st *hdr.Stat, f *os.File) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if s.dialect.Kind == 0 {
		if nlog.Verbose(1) {
			nlog.Infof("%s: sparse files are not supported in %s format, storing expanded", st.Name, s.format)
		}
		return s.WriteMember(st, io.NewSectionReader(f, 0, st.Size))
	}
	m, err := sparse.ScanFile(f, st.Size, s.dialect)
	if err != nil {
		return s.memberErr("sparse", errors.Wrap(err, st.Name))
	}
	st.SparseMap = m
	return s.writeSparse(st, f)
}

// WriteSparseMap writes a sparse member with a known map (st.SparseMap,
// st.Size the expanded size); region data is read from `f` at the region
// offsets
func (s *Session) WriteSparseMap(st *hdr.Stat, f io.ReaderAt) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if s.dialect.Kind == 0 {
		return errors.Errorf("%s: sparse files are not supported in %s format", st.Name, s.format)
	}
	return s.writeSparse(st, f)
}

func (s *Session) writeSparse(st *hdr.Stat, f io.ReaderAt) error {
	block, volno := s.rb.CurrentBlockOrdinal(), s.rb.Volno()
	st.IsSparse = true
	dumped, err := s.dialect.DumpHeader(s.enc, s.xenc, st)
	if err != nil {
		return s.memberErr("sparse", errors.Wrap(err, st.Name))
	}
	if err := s.writeHeader(st, dumped.Header, dumped.XHeader); err != nil {
		return s.Fatal(err)
	}
	for i := range dumped.Ext {
		if err := s.write(dumped.Ext[i][:]); err != nil {
			return s.Fatal(err)
		}
	}
	var (
		size   = int64(len(dumped.Data)) + st.ArchiveFileSize
		shrank int64
	)
	err = s.writeData(st, size, func(w io.Writer) error {
		if _, err := w.Write(dumped.Data); err != nil {
			return err
		}
		for i := range st.SparseMap {
			n, err := s.dialect.DumpRegion(w, f, st, i)
			shrank += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && shrank > 0 {
		err = s.memberErr("shrank", errors.Errorf("%s: File shrank by %d bytes; padding with zeros", st.Name, shrank))
	}
	s.index(st, block, volno, "write")
	return err
}

// writeData writes `size` bytes of member data produced by `fill`; a short
// fill is zero-padded
func (s *Session) writeData(st *hdr.Stat, size int64, fill func(w io.Writer) error) error {
	if size == 0 {
		return nil
	}
	s.rb.MvBegin(st.Name, size)
	defer s.rb.MvEnd()

	tw := &trackWriter{w: s.rb.NewDataWriter()}
	err := fill(tw)
	if tw.err != nil {
		return s.Fatal(tw.err)
	}
	var errM error
	if left := size - tw.n; left > 0 {
		if err != nil && !cos.IsEOF(err) {
			errM = errors.Wrapf(err, "%s: read error at byte %d, while reading %d bytes", st.Name, tw.n, size)
		} else {
			errM = errors.Errorf("%s: File shrank by %d bytes; padding with zeros", st.Name, left)
		}
		if _, err := cos.WriteZeros(tw, left); err != nil {
			return s.Fatal(err)
		}
		s.memberErr("shrank", errM)
	}
	if err := tw.w.Close(); err != nil {
		return s.Fatal(err)
	}
	return errM
}

// writeHeader emits the member header with the records that precede it:
// GNU long link and long name, POSIX extended header
func (s *Session) writeHeader(st *hdr.Stat, h *hdr.Header, xh *xhdr.Header) error {
	if h.LongLink != "" {
		if err := s.writeLongName(hdr.LongLink, h.LongLink); err != nil {
			return err
		}
	}
	if h.LongName != "" {
		if err := s.writeLongName(hdr.LongName, h.LongName); err != nil {
			return err
		}
	}
	if s.format == hdr.FormatPOSIX {
		if xh == nil {
			xh = &xhdr.Header{}
			for _, keyword := range h.XKeys {
				s.xenc.Store(xh, keyword, st, nil)
			}
		}
		s.xenc.Finish(xh)
		if !xh.Empty() {
			if err := s.writeRecord(s.xenc.HeaderName(st), hdr.XHdType, xh.Bytes()); err != nil {
				return err
			}
			st.XHeader = xh.Bytes()
		}
	}
	hdr.FinishHeader(&h.Block)
	st.Format = s.format
	return s.write(h.Block[:])
}

func (s *Session) writeLongName(typeflag byte, name string) error {
	data := make([]byte, len(name)+1)
	copy(data, name)
	return s.writeRecord(hdr.LongLinkName, typeflag, data)
}

// writeRecord writes a private header followed by its data
func (s *Session) writeRecord(name string, typeflag byte, data []byte) error {
	b, err := s.enc.PrivateHeader(name, int64(len(data)), typeflag)
	if err != nil {
		return err
	}
	hdr.FinishHeader(b)
	if err := s.write(b[:]); err != nil {
		return err
	}
	return s.write(data)
}

// write puts `p` at the cursor, padding the last block
func (s *Session) write(p []byte) error {
	w := s.rb.NewDataWriter()
	if _, err := w.Write(p); err != nil {
		return err
	}
	return w.Close()
}

var zeroBlocks [2 * hdr.BlockSize]byte

// WriteEOT writes the end-of-archive marker, two zero blocks, and
// zero-fills the rest of the record
func (s *Session) WriteEOT() error {
	if err := s.check(true); err != nil {
		return err
	}
	if s.eot {
		return nil
	}
	s.eot = true
	if err := s.write(zeroBlocks[:]); err != nil {
		return s.Fatal(err)
	}
	s.rb.PadRecord()
	return nil
}
