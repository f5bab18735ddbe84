// Package rbuf implements record-blocked archive I/O: a stream of 512-byte
// blocks over media read and written in whole records, with retries,
// short-read reblocking, checkpoints and multi-volume switching
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package rbuf

import (
	"io"

	"github.com/NVIDIA/gotar/stats"
	"github.com/pkg/errors"
)

const (
	DefaultBlockingFactor = 20
	MaxBlockingFactor     = 1 << 16
	ReadErrorMax          = 10
)

// archive-scoped (fatal) errors
var (
	ErrUnaligned      = errors.New("unaligned block in archive")
	ErrUnalignedWrite = errors.New("write did not end on a block boundary")
	ErrFirstRecord    = errors.New("at beginning of tape, quitting now")
	ErrTooManyErrors  = errors.New("too many errors, quitting")
	ErrEndOfMedium    = errors.New("end of medium")
	ErrVolumeAbort    = errors.New("volume change aborted")
	ErrNotSeekable    = errors.New("archive is not seekable")
)

// IsFatal is true for errors that end the whole archive operation
func IsFatal(err error) bool {
	for _, e := range []error{ErrUnaligned, ErrUnalignedWrite, ErrFirstRecord, ErrTooManyErrors,
		ErrEndOfMedium, ErrVolumeAbort, ErrNotSeekable} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

type (
	// Changer names the next volume; an error aborts the operation
	Changer func(current string, volno int) (next string, err error)

	// Opener opens the named volume for the buffer's current mode
	Opener func(name string, volno int) (io.ReadWriteCloser, error)

	// VolumeHook runs right after a new volume is opened and before any data:
	// when writing, it emits the volume label and continuation headers; when
	// reading, it consumes and verifies them. `mv` describes the member split
	// across the volume boundary, nil if none.
	VolumeHook func(b *Buffer, volno int, mv *InFlight) error

	// InFlight is a member whose data continues on the next volume
	InFlight struct {
		Name   string
		Size   int64 // total data size
		Offset int64 // of the first data byte on the new volume
	}

	// VolumeSum summarizes one closed volume
	VolumeSum struct {
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		Digest uint64 `json:"xxhash"`
		Volno  int    `json:"volno"`
	}

	Options struct {
		Stats        *stats.Tracker
		Changer      Changer
		Opener       Opener
		OnVolume     VolumeHook
		OnCheckpoint func(n int64, write bool) // replaces the default log line
		// bytes per volume, 0: unlimited
		TapeLength     int64
		BlockingFactor int
		// records between checkpoints, 0: none
		Checkpoint int
		// keep reading until the record is full (pipes, compressed input)
		ReadFullRecords bool
		MultiVolume     bool
	}
)

// Left is the data size remaining past the volume boundary
func (mv *InFlight) Left() int64 { return mv.Size - mv.Offset }
