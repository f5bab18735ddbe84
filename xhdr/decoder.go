// Package xhdr implements POSIX (pax) extended headers: "%d %s=%s\n" records,
// the keyword table, and the global/member/override layering
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package xhdr

import (
	"path"

	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/pkg/errors"
)

// Decoder applies extended headers over the metadata decoded from the
// legacy header fields, in this order (later wins):
//   - records of the most recent global ('g') header
//   - records of the member's own ('x') header
//   - overrides (pax-option style "keyword=value")
//
// Keywords matching a Delete pattern are ignored at every layer.
type Decoder struct {
	global    []Record
	overrides []Record
	deleted   []string
	warned    map[string]struct{}
	volume    VolumeInfo
}

type decodeCtx struct {
	volume        *VolumeInfo
	pendingOffset int64
}

func NewDecoder() *Decoder {
	return &Decoder{warned: make(map[string]struct{}, 4)}
}

// SetOverrides installs keyword overrides; protected keywords are rejected
func (d *Decoder) SetOverrides(recs []Record) error {
	for _, r := range recs {
		if IsProtected(r.Keyword) {
			return errors.Errorf("keyword %s cannot be overridden", r.Keyword)
		}
	}
	d.overrides = recs
	return nil
}

// SetDeleted installs keyword patterns (path.Match syntax) to ignore
func (d *Decoder) SetDeleted(patterns []string) error {
	for _, pat := range patterns {
		if _, err := path.Match(pat, ""); err != nil {
			return errors.Wrapf(err, "invalid keyword pattern %q", pat)
		}
		if IsProtected(pat) {
			return errors.Errorf("keyword %s cannot be deleted", pat)
		}
	}
	d.deleted = patterns
	return nil
}

func (d *Decoder) Volume() VolumeInfo { return d.volume }
func (d *Decoder) ResetVolume()       { d.volume = VolumeInfo{} }

// DecodeGlobal replaces the current global layer with the records of `buf`;
// volume keywords are applied at once
func (d *Decoder) DecodeGlobal(buf []byte) error {
	var (
		recs []Record
		ctx  = &decodeCtx{volume: &d.volume, pendingOffset: -1}
		errs = cos.NewErrs()
	)
	err := Decode(buf, func(keyword, value string) error {
		if kw, ok := keywords[keyword]; ok && kw.global {
			if err := kw.decoder(ctx, nil, keyword, value); err != nil {
				errs.Add(err)
			}
			return nil
		}
		recs = append(recs, Record{Keyword: keyword, Value: value})
		return nil
	})
	if err != nil {
		return err
	}
	d.global = recs
	_, err = errs.JoinErr()
	return err
}

// Apply decodes the member's extended header `member` (may be empty) over
// `st`. A malformed header is returned as *ErrMalformed; value errors
// (*ErrBadValue) are collected and returned after all records are applied.
func (d *Decoder) Apply(st *hdr.Stat, member []byte) error {
	var (
		ctx  = &decodeCtx{volume: &d.volume, pendingOffset: -1}
		errs = cos.NewErrs()
	)
	for _, r := range d.global {
		if d.skip(r.Keyword) {
			continue
		}
		d.dispatch(ctx, st, r.Keyword, r.Value, &errs)
	}
	if len(member) > 0 {
		err := Decode(member, func(keyword, value string) error {
			if d.skip(keyword) {
				return nil
			}
			d.dispatch(ctx, st, keyword, value, &errs)
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, r := range d.overrides {
		d.dispatch(ctx, st, r.Keyword, r.Value, &errs)
	}

	// the stored size is what the (possibly overridden) size says;
	// the real size of a sparse member is what GNU.sparse.[real]size says
	st.ArchiveFileSize = st.Size
	if st.RealSizeSet {
		st.Size = st.RealSize
	}
	_, err := errs.JoinErr()
	return err
}

func (d *Decoder) skip(keyword string) bool {
	for _, r := range d.overrides {
		if r.Keyword == keyword {
			return true
		}
	}
	for _, pat := range d.deleted {
		if ok, _ := path.Match(pat, keyword); ok {
			return true
		}
	}
	return false
}

func (d *Decoder) dispatch(ctx *decodeCtx, st *hdr.Stat, keyword, value string, errs *cos.Errs) {
	kw, ok := keywords[keyword]
	if !ok {
		if _, warned := d.warned[keyword]; !warned {
			d.warned[keyword] = struct{}{}
			nlog.Warningf("Ignoring unknown extended header keyword %q", keyword)
		}
		return
	}
	if err := kw.decoder(ctx, st, keyword, value); err != nil {
		errs.Add(err)
	}
}
