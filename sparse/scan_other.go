//go:build !linux

// Package sparse translates between sparse files and their archived form:
// a map of data regions plus the concatenated data
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package sparse

import (
	"errors"
	"os"
)

func scanSeek(*os.File, int64) (Map, error) {
	return nil, errors.New("not supported")
}
