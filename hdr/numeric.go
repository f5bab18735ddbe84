// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import (
	"math"
	"strconv"

	"github.com/NVIDIA/gotar/cmn/nlog"
)

// NumType describes the in-memory type of a numeric header field:
// its width (bits) and the range accepted on decode
type NumType struct {
	Name string
	Bits int
	Min  int64
	Max  int64
}

var (
	ModeT  = NumType{"mode_t", 32, 0, math.MaxUint32}
	UIDT   = NumType{"uid_t", 32, 0, math.MaxUint32}
	GIDT   = NumType{"gid_t", 32, 0, math.MaxUint32}
	OffT   = NumType{"off_t", 64, math.MinInt64, math.MaxInt64}
	TimeT  = NumType{"time_t", 64, math.MinInt64, math.MaxInt64}
	MajorT = NumType{"major_t", 32, 0, math.MaxUint32}
	MinorT = NumType{"minor_t", 32, 0, math.MaxUint32}
	SizeT  = NumType{"size_t", 64, 0, math.MaxInt64}
)

const (
	lg8   = 3
	lg64  = 6
	lg256 = 8
)

// octal limits of the common field widths
const (
	MaxOctal7  = 1<<(7*lg8) - 1  // 8-byte fields
	MaxOctal11 = 1<<(11*lg8) - 1 // 12-byte fields
)

// largest value representable with `digits` digits of `bits` each
func maxValWithDigits(digits, bits int) uint64 {
	if digits*bits >= 64 {
		return math.MaxUint64
	}
	return 1<<(digits*bits) - 1
}

func toOctal(v uint64, dst []byte) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = '0' + byte(v&7)
		v >>= lg8
	}
}

// two's complement, big-endian, sign-extended over the whole of dst
func toBase256(v int64, dst []byte) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= lg256
	}
}

// ToChars encodes `v` into the numeric field `dst`. In order of preference:
// POSIX octal (size-1 digits and a NUL); base-256 for GNU dialects;
// negative octal modulo 2**bits; the `subst` value (GNU dialects only).
func (e *Encoder) ToChars(dst []byte, v int64, t NumType, subst func() int64) error {
	var (
		size     = len(dst)
		negative = v < 0
		gnu      = e.Format.IsGNU()
	)
	switch {
	case !negative && uint64(v) <= maxValWithDigits(size-1, lg8):
		dst[size-1] = 0
		toOctal(uint64(v), dst[:size-1])
		return nil
	case gnu && magnitude(v) <= maxValWithDigits(size-1, lg256):
		if negative {
			dst[0] = 0xff
		} else {
			dst[0] = 0x80
		}
		toBase256(v, dst[1:])
		return nil
	case gnu && negative && t.Bits <= (size-1)*lg8:
		if !e.warnedNegOctal {
			e.warnedNegOctal = true
			nlog.Warningln("Generating negative octal headers")
		}
		dst[size-1] = 0
		toOctal(uint64(v)&maxValWithDigits(t.Bits, 1), dst[:size-1])
		return nil
	}

	maxval := maxValWithDigits(size-1, lg8)
	minval := "0"
	if gnu {
		maxval = maxValWithDigits(size-1, lg256)
		if maxval == math.MaxUint64 {
			minval = "-" + strconv.FormatUint(maxval/2+1, 10)
		} else {
			minval = "-" + strconv.FormatUint(maxval+1, 10)
		}
	}
	err := &ErrOutOfRange{What: t.Name, Value: v, Min: minval, Max: strconv.FormatUint(maxval, 10)}
	if subst == nil || !gnu {
		return err
	}
	sub := int64(uint64(subst()) & maxval)
	nlog.Warningf("%v; substituting %d", err, sub)
	return e.ToChars(dst, sub, t, nil)
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-1 - v)
	}
	return uint64(v)
}

// ToCharsU encodes an unsigned value as octal only (checksum, counts)
func ToCharsU(dst []byte, v uint64) bool {
	size := len(dst)
	if v > maxValWithDigits(size-1, lg8) {
		return false
	}
	dst[size-1] = 0
	toOctal(v, dst[:size-1])
	return true
}

func (e *Encoder) OffToChars(dst []byte, v int64) error  { return e.ToChars(dst, v, OffT, nil) }
func (e *Encoder) TimeToChars(dst []byte, v int64) error { return e.ToChars(dst, v, TimeT, nil) }

//
// decoding
//

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Map [256]byte

func init() {
	for i := range base64Map {
		base64Map[i] = 64
	}
	for i := range len(base64Digits) {
		base64Map[base64Digits[i]] = byte(i)
	}
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
func isSpace(c byte) bool { return c == ' ' || (c >= '\t' && c <= '\r') }

// FromChars decodes a numeric field: leading blanks are skipped, then
// octal (terminated by NUL, blank, or the end of the field), base-256
// (0x80 or 0xff lead byte), or obsolescent base-64 ('+' or '-' lead byte).
// All-NUL field decodes as zero.
func (d *Decoder) FromChars(field []byte, t NumType) (int64, error) {
	return d.fromChars(field, t, false)
}

func (d *Decoder) fromChars(field []byte, t NumType, octalOnly bool) (int64, error) {
	var (
		i        int
		lim      = len(field)
		negative bool
		value    uint64
		maxval   = uint64(t.Max)
		minusMin = magnitude(t.Min)
	)
	if t.Min < 0 {
		minusMin++ // -MinInt64
	}
	for ; ; i++ {
		if i == lim {
			return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "blanks in header where numeric value expected"}
		}
		if !isSpace(field[i]) {
			break
		}
	}

	switch c := field[i]; {
	case isOctal(c):
		var (
			start    = i
			overflow bool
		)
		for {
			value += uint64(field[i] - '0')
			i++
			if i == lim || !isOctal(field[i]) {
				break
			}
			overflow = overflow || value>>(64-lg8) != 0
			value <<= lg8
		}
		// older tars wrote negative values in two's complement octal;
		// recoverable only when the leading digit is 2 or more
		if (overflow || maxval < value) && field[start] >= '2' {
			var (
				digit = uint64(field[start]-'0') | 4
				neg   uint64
				ovf   bool
			)
			for j := start; ; {
				neg += 7 - digit
				j++
				if j == lim || !isOctal(field[j]) {
					break
				}
				digit = uint64(field[j] - '0')
				ovf = ovf || neg>>(64-lg8) != 0
				neg <<= lg8
			}
			neg++
			ovf = ovf || neg == 0
			if !ovf && neg <= minusMin {
				if !d.Silent {
					nlog.Warningf("Archive octal value %s is out of %s range; assuming two's complement",
						field[start:i], t.Name)
				}
				negative, value, overflow = true, neg, false
			}
		}
		if overflow {
			return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "octal value is out of range"}
		}
	case octalOnly:
		// no extensions
	case c == '+' || c == '-':
		if !d.warnedBase64 && !d.Silent {
			d.warnedBase64 = true
			nlog.Warningln("Archive contains obsolescent base-64 headers")
		}
		negative = c == '-'
		for i++; i < lim; i++ {
			dig := base64Map[field[i]]
			if dig >= 64 {
				break
			}
			if value>>(64-lg64) != 0 {
				return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "signed base-64 string is out of range"}
			}
			value = value<<lg64 | uint64(dig)
		}
	case c&0x80 != 0:
		// a nonnegative N is represented as (256**digs)/2 + N, a negative -N as (256**digs) - N
		signbit := int64(c & 0x40)
		v := int64(c&0x3f) - signbit
		for i++; i < lim; i++ {
			if v > math.MaxInt64>>lg256 || v < math.MinInt64>>lg256 {
				return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "base-256 value is out of range"}
			}
			v = v<<lg256 + int64(field[i])
		}
		if v < t.Min || v > t.Max {
			return -1, &ErrOutOfRange{What: t.Name, Value: v, Min: strconv.FormatInt(t.Min, 10),
				Max: strconv.FormatInt(t.Max, 10)}
		}
		return v, nil
	}

	if i < lim && field[i] != 0 && !isSpace(field[i]) {
		return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "junk where numeric value expected"}
	}
	if negative {
		if value <= minusMin {
			return -int64(value), nil // (-MinInt64 wraps to itself)
		}
	} else if value <= maxval {
		return int64(value), nil
	}
	return -1, &ErrBadNumber{What: t.Name, Raw: field, Reason: "value is out of range"}
}

// OffFromChars and friends: shorthands for the common field types

func (d *Decoder) OffFromChars(field []byte) (int64, error)  { return d.FromChars(field, OffT) }
func (d *Decoder) TimeFromChars(field []byte) (int64, error) { return d.FromChars(field, TimeT) }
