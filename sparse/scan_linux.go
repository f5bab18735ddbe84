// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"os"

	"github.com/NVIDIA/gotar/hdr"
	"golang.org/x/sys/unix"
)

// scanSeek maps the file with SEEK_DATA/SEEK_HOLE
func scanSeek(f *os.File, size int64) (Map, error) {
	var (
		m   Map
		off int64
		fd  = int(f.Fd())
	)
	for off < size {
		data, err := unix.Seek(fd, off, unix.SEEK_DATA)
		if err != nil {
			if err == unix.ENXIO { // trailing hole
				break
			}
			return nil, err
		}
		if data >= size {
			break
		}
		hole, err := unix.Seek(fd, data, unix.SEEK_HOLE)
		if err != nil {
			return nil, err
		}
		hole = min(hole, size)
		m = append(m, hdr.Region{Offset: data, Numbytes: hole - data})
		off = hole
	}
	return append(m, hdr.Region{Offset: size}), nil
}
