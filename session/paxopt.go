// Package session drives reading and writing of whole archives: header
// sequencing, member data, end-of-archive, volume labels and multi-volume
// continuation, on top of the record buffer and the header codecs
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"strings"

	"github.com/NVIDIA/gotar/cmn/nlog"
	"github.com/NVIDIA/gotar/xhdr"
	"github.com/pkg/errors"
)

type paxOptions struct {
	overrides   []xhdr.Record
	deleted     []string
	namePattern string
}

// parsePaxOptions accepts, one option per entry:
//   - delete=PATTERN       keywords to drop (write) and ignore (read)
//   - exthdr.name=PATTERN  name of the per-member extended header
//   - KEYWORD=VALUE        KEYWORD:=VALUE  override in every member
func parsePaxOptions(opts []string) (po paxOptions, err error) {
	for _, opt := range opts {
		var (
			keyword, value string
			ok             bool
		)
		if keyword, value, ok = strings.Cut(opt, ":="); !ok {
			if keyword, value, ok = strings.Cut(opt, "="); !ok {
				return po, errors.Errorf("missing '=' in %q", opt)
			}
		}
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			return po, errors.Errorf("missing keyword in %q", opt)
		}
		switch keyword {
		case "delete":
			po.deleted = append(po.deleted, value)
		case "exthdr.name":
			po.namePattern = value
		case "globexthdr.name", "invalid", "linkdata":
			nlog.Warningf("pax option %q is not supported, ignored", keyword)
		default:
			po.overrides = append(po.overrides, xhdr.Record{Keyword: keyword, Value: value})
		}
	}
	return po, nil
}
