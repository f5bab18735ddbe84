// Package archive provides the compression filters an archive stream can be
// wrapped in, and their detection by magic
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"bufio"
	"bytes"
	"io"

	"github.com/NVIDIA/gotar/cmn/cos"
)

// - references:
//   * https://en.wikipedia.org/wiki/List_of_file_signatures

type detect struct {
	sig    []byte
	offset int
	comp   Compression
}

// standard file signatures
var (
	magicTar   = detect{offset: 257, sig: []byte("ustar"), comp: CompNone}
	magicGzip  = detect{sig: []byte{0x1f, 0x8b}, comp: CompGzip}
	magicZstd  = detect{sig: []byte{0x28, 0xb5, 0x2f, 0xfd}, comp: CompZstd}
	magicLz4   = detect{sig: []byte{0x04, 0x22, 0x4d, 0x18}, comp: CompLz4}
	magicXz    = detect{sig: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, comp: CompXz}
	magicBzip2 = detect{sig: []byte("BZh"), comp: CompBzip2}

	allMagics = []detect{magicTar, magicGzip, magicZstd, magicLz4, magicXz, magicBzip2} // NOTE: must contain all
)

// one tar block is enough to see the "ustar" magic
const sizeDetect = 512

// Detect matches the leading bytes of a stream against the known signatures;
// false if none matches (a V7 archive, say, or garbage)
func Detect(buf []byte) (Compression, bool) {
	for _, magic := range allMagics {
		if len(buf) < magic.offset+len(magic.sig) {
			continue
		}
		if bytes.Equal(buf[magic.offset:magic.offset+len(magic.sig)], magic.sig) {
			return magic.comp, true
		}
	}
	return CompNone, false
}

// Sniff peeks at the head of `r` without consuming it; the returned reader
// must be used in place of `r`
func Sniff(r io.Reader) (Compression, io.Reader, error) {
	br := bufio.NewReaderSize(r, sizeDetect)
	buf, err := br.Peek(sizeDetect)
	if err != nil && !cos.IsEOF(err) {
		return CompNone, br, err
	}
	comp, _ := Detect(buf)
	return comp, br, nil
}
