// Package hdr encodes and decodes the 512-byte tar header block in all
// supported dialects (V7, OLDGNU, GNU, USTAR, POSIX, STAR)
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package hdr

import "math"

const chkBlanks = "        " // 8 blanks

// Checksum returns the unsigned (POSIX) and signed (Sun) byte sums of the
// block with the checksum field counted as blanks
func Checksum(b *Block) (unsigned, signed int) {
	for i, c := range b {
		if i >= fChksum.off && i < fChksum.off+fChksum.size {
			c = ' '
		}
		unsigned += int(c)
		signed += int(int8(c))
	}
	return
}

// VerifyChecksum distinguishes all-zero blocks (end-of-archive markers)
// from valid and invalid headers; either sum is accepted
func (d *Decoder) VerifyChecksum(b *Block) (Status, error) {
	if b.IsZero() {
		return StatusZeroBlock, nil
	}
	unsigned, signed := Checksum(b)
	recorded, err := d.fromChars(b.ChksumField(), NumType{"checksum", 64, 0, math.MaxInt32}, true)
	if err != nil {
		return StatusFailure, err
	}
	if int64(unsigned) != recorded && int64(signed) != recorded {
		return StatusFailure, &ErrBadChecksum{Expected: recorded, Unsigned: unsigned, Signed: signed}
	}
	return StatusSuccess, nil
}

// FinishHeader computes and stores the checksum: six octal digits,
// a NUL, and the space left over from checksumming
func FinishHeader(b *Block) {
	chksum := b.ChksumField()
	copy(chksum, chkBlanks)
	sum, _ := Checksum(b)
	ToCharsU(chksum[:7], uint64(sum))
}
