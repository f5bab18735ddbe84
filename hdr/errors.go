// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrNameTooLong = errors.New("file name is too long")
	ErrLinkTooLong = errors.New("link name is too long")
)

type (
	ErrOutOfRange struct {
		What  string
		Value int64
		Min   string
		Max   string
	}
	ErrBadChecksum struct {
		Expected int64 // as recorded
		Unsigned int
		Signed   int
	}
	ErrBadNumber struct {
		What   string
		Reason string
		Raw    []byte
	}
)

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("value %d out of %s range %s..%s", e.Value, e.What, e.Min, e.Max)
}

func (e *ErrBadChecksum) Error() string {
	return fmt.Sprintf("checksum mismatch: recorded %d, computed %d (signed %d)", e.Expected, e.Unsigned, e.Signed)
}

func (e *ErrBadNumber) Error() string {
	return fmt.Sprintf("archive %s: %s (%s)", e.What, e.Reason, strconv.Quote(string(e.Raw)))
}

func IsErrOutOfRange(err error) bool {
	var e *ErrOutOfRange
	return errors.As(err, &e)
}

func nameTooLong(name string, max int) error {
	return errors.Wrapf(ErrNameTooLong, "%s: (max %d); not dumped", name, max)
}
