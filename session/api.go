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
	"time"

	"github.com/NVIDIA/gotar/catalog"
	"github.com/NVIDIA/gotar/cmn"
	"github.com/NVIDIA/gotar/cmn/archive"
	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/rbuf"
	"github.com/NVIDIA/gotar/sparse"
	"github.com/NVIDIA/gotar/stats"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeUpdate // append to an existing (uncompressed, seekable) archive
)

var modeNames = [...]string{"read", "write", "update"}

func (m Mode) String() string { return modeNames[m] }

// largest extended record (long name, pax header) accepted on read
const maxExtendedSize = 64 * cos.MiB

var (
	ErrNotTar = errors.New("This does not look like a tar archive")
	ErrClosed = errors.New("archive session is closed")
	ErrMode   = errors.New("operation not permitted in this mode")
)

type (
	Args struct {
		Config *cmn.Config
		Stats  *stats.Tracker
		// the (first) volume; nil: open Names[0]. The session owns it.
		Medium any
		// volume names, in order; the first names the archive in diagnostics
		Names []string
		// defaults: next of Names, and os.Open/os.Create
		Changer rbuf.Changer
		Opener  rbuf.Opener
		// header time of private records (labels, long names); time.Now if nil
		Now  func() time.Time
		Mode Mode
	}

	// Session is one pass over one archive. Not safe for concurrent use.
	Session struct {
		cfg     *cmn.Config
		args    Args
		rb      *rbuf.Buffer
		enc     *hdr.Encoder
		dec     *hdr.Decoder
		xenc    *xhdr.Encoder
		xdec    *xhdr.Decoder
		cat     *catalog.Catalog
		stats   *stats.Tracker
		filter  *filter
		medium  io.Closer // owned, nil if closed by the record buffer
		cur     *member
		fatal   error
		atExit  []func()
		dialect sparse.Dialect // sparse dialect on write
		prev    hdr.Status
		label   string // label found on read
		name    string
		format  hdr.Format
		mode    Mode
		eot     bool
		closed  bool
	}
)

// Open starts a session; for ModeWrite with a label configured the label
// header is written at once, for ModeUpdate the archive is read to its end
func Open(args *Args) (*Session, error) {
	cfg := args.Config
	if cfg == nil {
		cfg = cmn.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg, args: *args, mode: args.Mode, format: cfg.ArchiveFormat(), prev: hdr.StatusUnread}
	if len(args.Names) > 0 {
		s.name = args.Names[0]
	}
	if s.name == "" {
		s.name = "archive"
	}
	s.stats = args.Stats
	if s.stats == nil {
		s.stats = stats.New()
	}
	if err := s.initCodecs(); err != nil {
		return nil, err
	}
	if cfg.Catalog != "" {
		cat, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		s.cat = cat
	}
	if err := s.open(); err != nil {
		s.closeCatalog()
		return nil, err
	}
	var err error
	switch s.mode {
	case ModeWrite:
		err = s.writeLabel(s.cfg.Label)
	case ModeUpdate:
		err = s.seekEnd()
	}
	if err != nil {
		return nil, s.Fatal(err)
	}
	return s, nil
}

func (s *Session) initCodecs() error {
	cfg := s.cfg
	s.enc = hdr.NewEncoder(s.format)
	s.enc.Incremental, s.enc.NumericOwner = cfg.Incremental, cfg.NumericOwner
	if s.args.Now != nil {
		s.enc.Now = s.args.Now
	}
	if cfg.SubstUID != nil {
		uid := *cfg.SubstUID
		s.enc.SubstUID = func() int64 { return uid }
	}
	if cfg.SubstGID != nil {
		gid := *cfg.SubstGID
		s.enc.SubstGID = func() int64 { return gid }
	}
	s.dec = &hdr.Decoder{Incremental: cfg.Incremental}

	opts, err := parsePaxOptions(cfg.PaxOptions)
	if err != nil {
		return &cmn.ErrInvalidConfig{Field: "pax_options", Reason: err.Error()}
	}
	s.xenc, s.xdec = xhdr.NewEncoder(), xhdr.NewDecoder()
	if opts.namePattern != "" {
		s.xenc.NamePattern = opts.namePattern
	}
	if err := s.xenc.SetOverrides(opts.overrides); err != nil {
		return &cmn.ErrInvalidConfig{Field: "pax_options", Reason: err.Error()}
	}
	if err := s.xdec.SetOverrides(opts.overrides); err != nil {
		return &cmn.ErrInvalidConfig{Field: "pax_options", Reason: err.Error()}
	}
	if err := s.xenc.SetDeleted(opts.deleted); err != nil {
		return &cmn.ErrInvalidConfig{Field: "pax_options", Reason: err.Error()}
	}
	if err := s.xdec.SetDeleted(opts.deleted); err != nil {
		return &cmn.ErrInvalidConfig{Field: "pax_options", Reason: err.Error()}
	}

	pax, _ := cfg.SparseDialect()
	if s.dialect, err = sparse.Select(s.format, pax); err != nil {
		s.dialect = sparse.Dialect{} // sparse files are stored expanded
	}
	return nil
}

// open attaches the record buffer to the first volume, through a
// compression filter if there is one
func (s *Session) open() error {
	medium := s.args.Medium
	if medium == nil {
		f, err := s.openFile(s.name)
		if err != nil {
			return err
		}
		medium = f
	}
	if cl, ok := medium.(io.Closer); ok {
		s.medium = cl
	}
	opts := &rbuf.Options{
		Stats:           s.stats,
		Changer:         s.args.Changer,
		Opener:          s.args.Opener,
		OnVolume:        s.volumeHook,
		TapeLength:      int64(s.cfg.TapeLength),
		BlockingFactor:  s.cfg.BlockingFactor,
		Checkpoint:      s.cfg.Checkpoint,
		ReadFullRecords: s.cfg.ReadFullRecords,
		MultiVolume:     s.cfg.MultiVolume,
	}
	if opts.Changer == nil {
		opts.Changer = s.nextName
	}
	if opts.Opener == nil {
		opts.Opener = s.openVolume
	}

	comp, err := s.compression(medium)
	if err != nil {
		s.closeMedium()
		return err
	}
	direct := comp.sniffed == nil
	if !direct {
		medium = comp.sniffed
	}
	if comp.c != archive.CompNone {
		switch {
		case s.mode == ModeUpdate:
			err = errors.Errorf("%s: cannot update a %s-compressed archive", s.name, comp.c)
		case s.cfg.MultiVolume:
			err = errors.Errorf("%s: cannot create or read a %s-compressed multi-volume archive", s.name, comp.c)
		default:
			s.filter, medium, err = newFilter(medium, comp.c, s.mode == ModeWrite)
		}
		if err != nil {
			s.closeMedium()
			return err
		}
		direct = false
		opts.ReadFullRecords = true
		if nlog.Verbose(1) {
			nlog.Infof("%s: %s filter", s.name, comp.c)
		}
	}

	if s.mode == ModeWrite {
		s.rb = rbuf.NewWriter(medium.(io.Writer), s.name, opts)
	} else {
		s.rb = rbuf.NewReader(medium.(io.Reader), s.name, opts)
	}
	if direct {
		s.medium = nil // closed by the record buffer along with the first volume
	}
	return nil
}

func (s *Session) openFile(name string) (*os.File, error) {
	switch s.mode {
	case ModeWrite:
		return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	case ModeUpdate:
		return os.OpenFile(name, os.O_RDWR, 0)
	default:
		return os.Open(name)
	}
}

func (s *Session) openVolume(name string, _ int) (io.ReadWriteCloser, error) {
	if s.rb.Writing() {
		return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	return os.Open(name)
}

// nextName walks Names; running out of them ends the operation
func (s *Session) nextName(_ string, volno int) (string, error) {
	if volno > len(s.args.Names) {
		return "", errors.Errorf("no name for volume %d (have %d)", volno, len(s.args.Names))
	}
	return s.args.Names[volno-1], nil
}

type sniffed struct {
	sniffed io.Reader
	c       archive.Compression
}

func (s *Session) compression(medium any) (sniffed, error) {
	var (
		cfg = s.cfg.Compression
		res sniffed
		err error
	)
	switch {
	case s.mode == ModeUpdate:
		res.c, err = archive.ParseCompression(cfg)
		if cfg == cmn.CompressionAuto {
			res.c, err = archive.CompNone, nil
		}
	case s.mode == ModeWrite && cfg == cmn.CompressionAuto:
		if res.c, err = archive.ByExt(s.name); err != nil {
			res.c, err = archive.CompNone, nil
		}
	case s.mode == ModeWrite:
		res.c, err = archive.ParseCompression(cfg)
	case cfg == "" || cfg == cmn.CompressionAuto:
		r, ok := medium.(io.Reader)
		debug.Assert(ok)
		res.c, res.sniffed, err = archive.Sniff(r)
	default:
		res.c, err = archive.ParseCompression(cfg)
	}
	return res, err
}

func (s *Session) Name() string              { return s.name }
func (s *Session) Mode() Mode                { return s.mode }
func (s *Session) Format() hdr.Format        { return s.format }
func (s *Session) Stats() *stats.Tracker     { return s.stats }
func (s *Session) Buffer() *rbuf.Buffer      { return s.rb }
func (s *Session) Catalog() *catalog.Catalog { return s.cat }

// Label is the volume label found on read (V header or GNU.volume.label)
func (s *Session) Label() string { return s.label }

// AtExit registers a cleanup to run at Close or Fatal, last registered first
func (s *Session) AtExit(fn func()) { s.atExit = append(s.atExit, fn) }

// Fatal ends the session after an archive-scoped error: the error is
// reported, the AtExit hooks run, everything is closed, and all later
// calls return the same error
func (s *Session) Fatal(err error) error {
	debug.Assert(err != nil)
	if s.fatal != nil {
		return s.fatal
	}
	s.fatal = err
	nlog.Errorln(err)
	s.teardown()
	return err
}

// Close writes the end-of-archive (write and update), flushes, closes all
// volumes and records them in the catalog
func (s *Session) Close() (err error) {
	if s.fatal != nil {
		return s.fatal
	}
	if s.closed {
		return nil
	}
	if s.rb.Writing() && !s.eot {
		err = s.WriteEOT()
	} else if s.mode == ModeRead && s.cur != nil {
		s.rb.MvEnd()
	}
	if err != nil {
		return err
	}
	return s.teardown()
}

func (s *Session) teardown() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for i := len(s.atExit) - 1; i >= 0; i-- {
		s.atExit[i]()
	}
	s.atExit = nil

	var errs = cos.NewErrs()
	if s.rb != nil {
		if err := s.rb.Close(); err != nil {
			errs.Add(err)
		}
	}
	if s.filter != nil {
		if err := s.filter.wait(); err != nil {
			errs.Add(err)
		}
	}
	if err := s.closeMedium(); err != nil {
		errs.Add(err)
	}
	if s.cat != nil && s.rb != nil {
		for _, sum := range s.rb.Volumes() {
			v := &catalog.Volume{Name: sum.Name, Size: sum.Size, Digest: sum.Digest, Volno: sum.Volno}
			if err := s.cat.AddVolume(v); err != nil {
				errs.Add(err)
			}
		}
	}
	if err := s.closeCatalog(); err != nil {
		errs.Add(err)
	}
	_, err := errs.JoinErr()
	return err
}

func (s *Session) closeMedium() (err error) {
	if s.medium != nil {
		err = s.medium.Close()
		s.medium = nil
	}
	return err
}

func (s *Session) closeCatalog() (err error) {
	if s.cat != nil {
		err = s.cat.Close()
		s.cat = nil
	}
	return err
}

// check is called on entry to every operation
func (s *Session) check(writing bool) error {
	if s.fatal != nil {
		return s.fatal
	}
	if s.closed {
		return ErrClosed
	}
	if writing != s.rb.Writing() {
		return errors.Wrapf(ErrMode, "%s (%s)", s.name, s.mode)
	}
	return nil
}

// fail routes archive-scoped errors to Fatal and passes member errors through
func (s *Session) fail(err error) error {
	if err != nil && rbuf.IsFatal(err) {
		return s.Fatal(err)
	}
	return err
}

// memberErr reports a member-scoped failure; the run goes on
func (s *Session) memberErr(reason string, err error) error {
	nlog.Errorln(err)
	s.stats.IncWith(stats.MemberErrors, stats.LabelReason, reason)
	return err
}

// KindOf classifies a member for stats and listings
func KindOf(st *hdr.Stat) string {
	switch {
	case st.IsSparse:
		return "sparse"
	case st.Typeflag == hdr.VolHeader:
		return "label"
	case st.Typeflag == hdr.MultiVol:
		return "continuation"
	case st.IsDir():
		return "directory"
	case st.Typeflag == hdr.SymType:
		return "symlink"
	case st.Typeflag == hdr.LnkType:
		return "hardlink"
	case st.Typeflag == hdr.RegType || st.Typeflag == hdr.ARegType || st.Typeflag == hdr.ContType:
		return "regular"
	}
	return "special"
}

func (s *Session) index(st *hdr.Stat, block int64, volno int, op string) {
	s.stats.IncWith(stats.Members, stats.LabelOp, op, stats.LabelKind, KindOf(st))
	if s.cat == nil {
		return
	}
	if err := s.cat.Add(catalog.NewEntry(st, block, volno)); err != nil {
		nlog.Warningf("%s: catalog: %v", st.Name, err)
	}
}
