// Package xhdr implements POSIX (pax) extended headers: "%d %s=%s\n" records,
// the keyword table, and the global/member/override layering
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package xhdr

import (
	"bytes"
	"fmt"
	"strconv"
)

type Record struct {
	Keyword string
	Value   string
}

// ErrMalformed is a structural error in an extended header; it affects
// only the member the header belongs to
type ErrMalformed struct {
	Reason string
	Offset int
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("Malformed extended header: %s (at offset %d)", e.Reason, e.Offset)
}

// RecordLen returns the total length of the record, self-referential
// length prefix included. The loop settles within three iterations: the
// digit count of the total is non-decreasing in the digit count of the
// prefix, and one extra digit covers a tenfold increase.
func RecordLen(keyword, value string) int {
	var (
		base = len(keyword) + len(value) + 3 // ' ' + '=' + '\n'
		n, p = 0, -1
	)
	for n != p {
		p = n
		n = len(strconv.Itoa(base + p))
	}
	return base + n
}

// AppendRecord appends one "%d %s=%s\n" record to dst
func AppendRecord(dst []byte, keyword, value string) []byte {
	dst = strconv.AppendInt(dst, int64(RecordLen(keyword, value)), 10)
	dst = append(dst, ' ')
	dst = append(dst, keyword...)
	dst = append(dst, '=')
	dst = append(dst, value...)
	return append(dst, '\n')
}

// Decode scans the records in `buf` and calls `fn` for each; NUL padding
// ends the scan
func Decode(buf []byte, fn func(keyword, value string) error) error {
	var off int
	for off < len(buf) {
		rec, next, err := decodeRecord(buf, off)
		if err != nil {
			return err
		}
		if next < 0 {
			return nil
		}
		if err := fn(rec.Keyword, rec.Value); err != nil {
			return err
		}
		off = next
	}
	return nil
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func decodeRecord(buf []byte, start int) (rec Record, next int, err error) {
	p := start
	for p < len(buf) && isBlank(buf[p]) {
		p++
	}
	if p == len(buf) || buf[p] < '0' || buf[p] > '9' {
		if p == len(buf) || buf[p] == 0 {
			return rec, -1, nil
		}
		return rec, 0, &ErrMalformed{Reason: "missing length", Offset: start}
	}
	lenStart := p
	for p < len(buf) && buf[p] >= '0' && buf[p] <= '9' {
		p++
	}
	length, e := strconv.Atoi(string(buf[lenStart:p]))
	if e != nil {
		return rec, 0, &ErrMalformed{Reason: "length is out of allowed range", Offset: start}
	}
	switch {
	case length == 0:
		return rec, 0, &ErrMalformed{Reason: "zero length", Offset: start}
	case length > len(buf)-start:
		return rec, 0, &ErrMalformed{Reason: "length " + string(buf[lenStart:p]) + " is out of range", Offset: start}
	}
	next = start + length

	lenLim := p
	for p < next && isBlank(buf[p]) {
		p++
	}
	if p == lenLim {
		return rec, 0, &ErrMalformed{Reason: "missing blank after length", Offset: start}
	}
	eq := bytes.IndexByte(buf[p:next], '=')
	if eq < 0 {
		return rec, 0, &ErrMalformed{Reason: "missing equal sign", Offset: start}
	}
	if buf[next-1] != '\n' {
		return rec, 0, &ErrMalformed{Reason: "missing newline", Offset: start}
	}
	rec.Keyword = string(buf[p : p+eq])
	rec.Value = string(buf[p+eq+1 : next-1])
	return rec, next, nil
}
