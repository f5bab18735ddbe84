// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"fmt"
	"math"

	"github.com/NVIDIA/gotar/hdr"
)

// Map is an offset-ascending list of non-overlapping data regions; the last
// region may be zero-length, marking the end of a trailing hole
type Map []hdr.Region

// ErrMalformed: the member's map cannot be trusted; the member is skipped
type ErrMalformed struct {
	Name   string
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("%s: malformed sparse archive member: %s", e.Name, e.Reason)
}

// DataSize is the number of stored (non-hole) bytes
func (m Map) DataSize() (n int64) {
	for _, r := range m {
		n += r.Numbytes
	}
	return n
}

// End is the offset past the last region
func (m Map) End() int64 {
	if len(m) == 0 {
		return 0
	}
	last := m[len(m)-1]
	return last.Offset + last.Numbytes
}

// Validate checks ordering and bounds against the expanded file size
func (m Map) Validate(name string, realSize int64) error {
	var prevEnd int64
	for i, r := range m {
		switch {
		case r.Offset < 0 || r.Numbytes < 0:
			return &ErrMalformed{Name: name, Reason: fmt.Sprintf("region %d: negative offset or size", i)}
		case r.Offset > math.MaxInt64-r.Numbytes:
			return &ErrMalformed{Name: name, Reason: fmt.Sprintf("region %d: offset overflow", i)}
		case r.Offset+r.Numbytes > realSize:
			return &ErrMalformed{Name: name,
				Reason: fmt.Sprintf("region %d [%d, +%d) exceeds file size %d", i, r.Offset, r.Numbytes, realSize)}
		case r.Offset < prevEnd:
			return &ErrMalformed{Name: name, Reason: fmt.Sprintf("region %d overlaps or is out of order", i)}
		}
		prevEnd = r.Offset + r.Numbytes
	}
	return nil
}
