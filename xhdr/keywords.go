// Package xhdr implements POSIX (pax) extended headers: "%d %s=%s\n" records,
// the keyword table, and the global/member/override layering
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package xhdr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/gotar/hdr"
)

type (
	// produces the value of `keyword` for `st`; `arg` is keyword-specific
	// (region index for GNU.sparse.offset/numbytes, volume attributes, etc.)
	coder func(st *hdr.Stat, keyword string, arg any) string
	// applies one decoded record
	decoder func(ctx *decodeCtx, st *hdr.Stat, keyword, value string) error

	kwdef struct {
		coder     coder
		decoder   decoder
		protected bool // cannot be overridden or deleted
		global    bool // decoded immediately when found in a global header
	}

	// ErrBadValue is a well-formed record whose value is unusable;
	// the record is ignored
	ErrBadValue struct {
		Keyword string
		Value   string
		Reason  string
	}

	// VolumeInfo is carried by POSIX multi-volume global headers
	VolumeInfo struct {
		Label    string
		Filename string
		Size     int64
		Offset   int64
	}
)

func (e *ErrBadValue) Error() string {
	return fmt.Sprintf("Malformed extended header: invalid %s=%s: %s", e.Keyword, e.Value, e.Reason)
}

var keywords map[string]*kwdef

func init() {
	keywords = map[string]*kwdef{
		"atime":    {coder: timeCoder(func(st *hdr.Stat) time.Time { return st.Atime }), decoder: atimeDecoder},
		"comment":  {coder: stringArg, decoder: nopDecoder},
		"charset":  {coder: stringArg, decoder: nopDecoder},
		"ctime":    {coder: timeCoder(func(st *hdr.Stat) time.Time { return st.Ctime }), decoder: ctimeDecoder},
		"gid":      {coder: intCoder(func(st *hdr.Stat) int64 { return st.GID }), decoder: gidDecoder},
		"gname":    {coder: func(st *hdr.Stat, _ string, _ any) string { return st.Gname }, decoder: gnameDecoder},
		"linkpath": {coder: func(st *hdr.Stat, _ string, _ any) string { return st.LinkName }, decoder: linkpathDecoder},
		"mtime":    {coder: timeCoder(func(st *hdr.Stat) time.Time { return st.Mtime }), decoder: mtimeDecoder},
		"path":     {coder: func(st *hdr.Stat, _ string, _ any) string { return st.Name }, decoder: pathDecoder},
		"size":     {coder: intCoder(func(st *hdr.Stat) int64 { return st.Size }), decoder: sizeDecoder, protected: true},
		"uid":      {coder: intCoder(func(st *hdr.Stat) int64 { return st.UID }), decoder: uidDecoder},
		"uname":    {coder: func(st *hdr.Stat, _ string, _ any) string { return st.Uname }, decoder: unameDecoder},
		"devmajor": {coder: intCoder(func(st *hdr.Stat) int64 { return st.Devmajor }), decoder: devmajorDecoder},
		"devminor": {coder: intCoder(func(st *hdr.Stat) int64 { return st.Devminor }), decoder: devminorDecoder},

		// sparse v0.x and v1.0
		"GNU.sparse.name":      {coder: origName, decoder: sparseNameDecoder, protected: true},
		"GNU.sparse.major":     {coder: intCoder(func(st *hdr.Stat) int64 { return int64(st.SparseMajor) }), decoder: sparseMajorDecoder, protected: true},
		"GNU.sparse.minor":     {coder: intCoder(func(st *hdr.Stat) int64 { return int64(st.SparseMinor) }), decoder: sparseMinorDecoder, protected: true},
		"GNU.sparse.realsize":  {coder: intCoder(func(st *hdr.Stat) int64 { return st.RealSize }), decoder: realsizeDecoder, protected: true},
		"GNU.sparse.numblocks": {coder: intCoder(func(st *hdr.Stat) int64 { return int64(len(st.SparseMap)) }), decoder: numblocksDecoder, protected: true},
		"GNU.sparse.size":      {coder: intCoder(func(st *hdr.Stat) int64 { return st.RealSize }), decoder: realsizeDecoder, protected: true},
		"GNU.sparse.offset":    {coder: regionCoder(true), decoder: sparseOffsetDecoder, protected: true},
		"GNU.sparse.numbytes":  {coder: regionCoder(false), decoder: sparseNumbytesDecoder, protected: true},
		"GNU.sparse.map":       {coder: sparseMapCoder, decoder: sparseMapDecoder, protected: true},

		"GNU.dumpdir": {coder: func(st *hdr.Stat, _ string, _ any) string { return string(st.DumpDir) }, decoder: dumpdirDecoder, protected: true},

		// multi-volume
		"GNU.volume.label":    {coder: volumeCoder, decoder: volumeLabelDecoder, protected: true, global: true},
		"GNU.volume.filename": {coder: volumeCoder, decoder: volumeFilenameDecoder, protected: true, global: true},
		"GNU.volume.size":     {coder: volumeCoder, decoder: volumeSizeDecoder, protected: true, global: true},
		"GNU.volume.offset":   {coder: volumeCoder, decoder: volumeOffsetDecoder, protected: true, global: true},
	}
}

// IsKnown is true if `keyword` has a table entry
func IsKnown(keyword string) bool {
	_, ok := keywords[keyword]
	return ok
}

// IsProtected: keywords that cannot be overridden or deleted
func IsProtected(keyword string) bool {
	kw, ok := keywords[keyword]
	return ok && kw.protected
}

//
// values
//

// FormatTime renders a timestamp as "sec[.frac]" with trailing zeros of the
// fraction removed; negative times carry the sign on the whole value
func FormatTime(t time.Time) string {
	var (
		sec = t.Unix()
		ns  = int64(t.Nanosecond())
		neg = sec < 0
	)
	if neg && ns != 0 {
		sec++
		ns = 1e9 - ns
	}
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatUint(uint64(-sec), 10))
	} else {
		sb.WriteString(strconv.FormatInt(sec, 10))
	}
	if ns != 0 {
		frac := strings.TrimRight(fmt.Sprintf("%09d", ns), "0")
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	return sb.String()
}

// ParseTime is the inverse of FormatTime; fractions beyond nanoseconds are truncated
func ParseTime(s string) (time.Time, error) {
	v := s
	neg := strings.HasPrefix(v, "-")
	if neg {
		v = v[1:]
	}
	secs, frac, _ := strings.Cut(v, ".")
	if secs == "" || !isDigits(secs) || !isDigits(frac) {
		return time.Time{}, fmt.Errorf("invalid time stamp %q", s)
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("time stamp %q out of range", s)
	}
	var ns int64
	for i := range 9 {
		ns *= 10
		if i < len(frac) {
			ns += int64(frac[i] - '0')
		}
	}
	if neg {
		sec, ns = -sec, -ns
	}
	return time.Unix(sec, ns), nil
}

func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseNum(keyword, value string, minv, maxv int64) (int64, error) {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, &ErrBadValue{Keyword: keyword, Value: value, Reason: "out of range"}
		}
		return 0, &ErrBadValue{Keyword: keyword, Value: value, Reason: "not a number"}
	}
	if v < minv || v > maxv {
		return 0, &ErrBadValue{Keyword: keyword, Value: value,
			Reason: fmt.Sprintf("out of allowed range %d..%d", minv, maxv)}
	}
	return v, nil
}

//
// coders
//

func stringArg(_ *hdr.Stat, _ string, arg any) string {
	s, _ := arg.(string)
	return s
}

func origName(st *hdr.Stat, _ string, _ any) string {
	if st.OrigName != "" {
		return st.OrigName
	}
	return st.Name
}

func timeCoder(get func(*hdr.Stat) time.Time) coder {
	return func(st *hdr.Stat, _ string, _ any) string { return FormatTime(get(st)) }
}

func intCoder(get func(*hdr.Stat) int64) coder {
	return func(st *hdr.Stat, _ string, _ any) string { return strconv.FormatInt(get(st), 10) }
}

func regionCoder(offset bool) coder {
	return func(st *hdr.Stat, _ string, arg any) string {
		r := st.SparseMap[arg.(int)]
		if offset {
			return strconv.FormatInt(r.Offset, 10)
		}
		return strconv.FormatInt(r.Numbytes, 10)
	}
}

func sparseMapCoder(st *hdr.Stat, _ string, _ any) string {
	var sb strings.Builder
	for i, r := range st.SparseMap {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(r.Offset, 10))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(r.Numbytes, 10))
	}
	return sb.String()
}

func volumeCoder(_ *hdr.Stat, keyword string, arg any) string {
	vi := arg.(*VolumeInfo)
	switch keyword {
	case "GNU.volume.label":
		return vi.Label
	case "GNU.volume.filename":
		return vi.Filename
	case "GNU.volume.size":
		return strconv.FormatInt(vi.Size, 10)
	default:
		return strconv.FormatInt(vi.Offset, 10)
	}
}

//
// decoders
//

func nopDecoder(*decodeCtx, *hdr.Stat, string, string) error { return nil }

func atimeDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) (err error) {
	st.Atime, err = timeValue(keyword, value, st.Atime)
	return err
}

func ctimeDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) (err error) {
	st.Ctime, err = timeValue(keyword, value, st.Ctime)
	return err
}

func mtimeDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) (err error) {
	st.Mtime, err = timeValue(keyword, value, st.Mtime)
	return err
}

func timeValue(keyword, value string, prev time.Time) (time.Time, error) {
	t, err := ParseTime(value)
	if err != nil {
		return prev, &ErrBadValue{Keyword: keyword, Value: value, Reason: err.Error()}
	}
	return t, nil
}

func gidDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	return setNum(&st.GID, keyword, value, 0, math.MaxUint32)
}

func uidDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	return setNum(&st.UID, keyword, value, 0, math.MaxUint32)
}

func sizeDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	return setNum(&st.Size, keyword, value, 0, math.MaxInt64)
}

func devmajorDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	return setNum(&st.Devmajor, keyword, value, 0, math.MaxUint32)
}

func devminorDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	return setNum(&st.Devminor, keyword, value, 0, math.MaxUint32)
}

func setNum(dst *int64, keyword, value string, minv, maxv int64) error {
	v, err := parseNum(keyword, value, minv, maxv)
	if err == nil {
		*dst = v
	}
	return err
}

func gnameDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	st.Gname = value
	return nil
}

func unameDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	st.Uname = value
	return nil
}

func linkpathDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	st.LinkName = value
	return nil
}

// GNU.sparse.name (if any) wins over path, whatever the order
func pathDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	if !st.SparseNameDone {
		st.SetName(value)
	}
	return nil
}

func sparseNameDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	st.SparseNameDone = true
	st.SetName(value)
	return nil
}

func sparseMajorDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt32)
	if err == nil {
		st.SparseMajor = int(v)
	}
	return err
}

func sparseMinorDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt32)
	if err == nil {
		st.SparseMinor = int(v)
	}
	return err
}

// GNU.sparse.size (v0.x) and GNU.sparse.realsize (v1.0)
func realsizeDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt64)
	if err == nil {
		st.RealSize, st.RealSizeSet = v, true
	}
	return err
}

func numblocksDecoder(ctx *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt32)
	if err != nil {
		return err
	}
	st.SparseMapSize = int(v)
	st.SparseMap = make([]hdr.Region, 0, min(v, 1024))
	st.IsSparse = true
	ctx.pendingOffset = -1
	return nil
}

// v0.0: offset/numbytes pairs in record order, bounded by numblocks
func sparseOffsetDecoder(ctx *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt64)
	if err != nil {
		return err
	}
	if len(st.SparseMap) >= st.SparseMapSize {
		return &ErrBadValue{Keyword: keyword, Value: value, Reason: "excess"}
	}
	ctx.pendingOffset = v
	return nil
}

func sparseNumbytesDecoder(ctx *decodeCtx, st *hdr.Stat, keyword, value string) error {
	v, err := parseNum(keyword, value, 0, math.MaxInt64)
	if err != nil {
		return err
	}
	switch {
	case len(st.SparseMap) >= st.SparseMapSize:
		return &ErrBadValue{Keyword: keyword, Value: value, Reason: "excess"}
	case ctx.pendingOffset < 0:
		return &ErrBadValue{Keyword: keyword, Value: value, Reason: "no preceding GNU.sparse.offset"}
	}
	st.SparseMap = append(st.SparseMap, hdr.Region{Offset: ctx.pendingOffset, Numbytes: v})
	ctx.pendingOffset = -1
	return nil
}

// v0.1: "offset,numbytes[,offset,numbytes...]"
func sparseMapDecoder(_ *decodeCtx, st *hdr.Stat, keyword, value string) error {
	var (
		fields = strings.Split(value, ",")
		sm     = make([]hdr.Region, 0, len(fields)/2)
	)
	if len(fields)%2 != 0 {
		return &ErrBadValue{Keyword: keyword, Value: value, Reason: "odd number of values"}
	}
	for i := 0; i < len(fields); i += 2 {
		off, err := parseNum(keyword, fields[i], 0, math.MaxInt64)
		if err != nil {
			return err
		}
		n, err := parseNum(keyword, fields[i+1], 0, math.MaxInt64)
		if err != nil {
			return err
		}
		sm = append(sm, hdr.Region{Offset: off, Numbytes: n})
	}
	st.SparseMap, st.SparseMapSize = sm, len(sm)
	st.SparseMinor = 1
	st.IsSparse = true
	return nil
}

func dumpdirDecoder(_ *decodeCtx, st *hdr.Stat, _, value string) error {
	st.DumpDir = []byte(value)
	return nil
}

func volumeLabelDecoder(ctx *decodeCtx, _ *hdr.Stat, _, value string) error {
	ctx.volume.Label = value
	return nil
}

func volumeFilenameDecoder(ctx *decodeCtx, _ *hdr.Stat, _, value string) error {
	ctx.volume.Filename = value
	return nil
}

func volumeSizeDecoder(ctx *decodeCtx, _ *hdr.Stat, keyword, value string) error {
	return setNum(&ctx.volume.Size, keyword, value, 0, math.MaxInt64)
}

func volumeOffsetDecoder(ctx *decodeCtx, _ *hdr.Stat, keyword, value string) error {
	return setNum(&ctx.volume.Offset, keyword, value, 0, math.MaxInt64)
}
