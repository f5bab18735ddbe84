// Package xhdr implements POSIX (pax) extended headers: "%d %s=%s\n" records,
// the keyword table, and the global/member/override layering
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package xhdr

import (
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/NVIDIA/gotar/cmn/debug"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/pkg/errors"
)

const (
	DefaultNamePattern  = "%d/PaxHeaders.%p/%f"
	GlobalNamePattern   = "/GlobalHead.%p.%n" // prefixed with $TMPDIR
	SparseV1NamePattern = "%d/GNUSparseFile.%p/%f"
)

// Header accumulates the records of one extended header
type Header struct {
	buf []byte
}

func (h *Header) Len() int      { return len(h.buf) }
func (h *Header) Empty() bool   { return len(h.buf) == 0 }
func (h *Header) Bytes() []byte { return h.buf }
func (h *Header) Reset()        { h.buf = h.buf[:0] }

// StoreString appends a record verbatim
func (h *Header) StoreString(keyword, value string) {
	h.buf = AppendRecord(h.buf, keyword, value)
}

// Encoder produces extended headers for the write side; one per session
type Encoder struct {
	Pid         int
	NamePattern string // member header name, DefaultNamePattern if empty
	overrides   []Record
	deleted     []string
	nglobal     int
}

func NewEncoder() *Encoder {
	return &Encoder{Pid: os.Getpid(), NamePattern: DefaultNamePattern}
}

func (e *Encoder) SetOverrides(recs []Record) error {
	for _, r := range recs {
		if IsProtected(r.Keyword) {
			return errors.Errorf("keyword %s cannot be overridden", r.Keyword)
		}
	}
	e.overrides = recs
	return nil
}

func (e *Encoder) SetDeleted(patterns []string) error {
	for _, pat := range patterns {
		if _, err := path.Match(pat, ""); err != nil {
			return errors.Wrapf(err, "invalid keyword pattern %q", pat)
		}
	}
	e.deleted = patterns
	return nil
}

// Store appends the record for `keyword` as computed from `st`; overridden
// and deleted keywords are skipped (overrides are appended by Finish)
func (e *Encoder) Store(h *Header, keyword string, st *hdr.Stat, arg any) {
	kw, ok := keywords[keyword]
	debug.Assert(ok, keyword)
	if !kw.protected && e.suppressed(keyword) {
		return
	}
	h.StoreString(keyword, kw.coder(st, keyword, arg))
}

// Finish appends the overrides; call once per header, after all Store calls
func (e *Encoder) Finish(h *Header) {
	for _, r := range e.overrides {
		h.StoreString(r.Keyword, r.Value)
	}
}

func (e *Encoder) suppressed(keyword string) bool {
	for _, r := range e.overrides {
		if r.Keyword == keyword {
			return true
		}
	}
	for _, pat := range e.deleted {
		if ok, _ := path.Match(pat, keyword); ok {
			return true
		}
	}
	return false
}

// HeaderName names the 'x' record of `st`
func (e *Encoder) HeaderName(st *hdr.Stat) string {
	pattern := e.NamePattern
	if pattern == "" {
		pattern = DefaultNamePattern
	}
	return Name(st, pattern, e.Pid, 0)
}

// GlobalName names the next 'g' record
func (e *Encoder) GlobalName() string {
	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = "/tmp"
	}
	e.nglobal++
	return Name(nil, tmp+GlobalNamePattern, e.Pid, e.nglobal)
}

// Name expands %d (directory of the original name), %f (its base name),
// %p (pid), %n (sequence number) and %% in `pattern`; the result is
// truncated to the header name field
func Name(st *hdr.Stat, pattern string, pid, n int) string {
	var (
		sb        strings.Builder
		dir, base string
	)
	if st != nil {
		name := st.OrigName
		if name == "" {
			name = st.Name
		}
		name = strings.TrimLeft(name, "/")
		dir, base = path.Dir(name), path.Base(name)
	}
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i == len(pattern)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch pattern[i] {
		case '%':
			sb.WriteByte('%')
		case 'd':
			if st != nil {
				sb.WriteString(dir)
			}
		case 'f':
			if st != nil {
				sb.WriteString(base)
			}
		case 'p':
			sb.WriteString(strconv.Itoa(pid))
		case 'n':
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte('%')
			sb.WriteByte(pattern[i])
		}
	}
	s := strings.TrimRight(sb.String(), "/")
	if len(s) > hdr.NameSize {
		s = s[:hdr.NameSize]
	}
	return s
}
