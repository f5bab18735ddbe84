// Package cos provides common low-level types and utilities for all gotar packages
/*
 * Copyright (c) 2022-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// IEC (binary) units
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

func _suffix(s string) (string, int64) {
	switch {
	case strings.HasSuffix(s, "KIB"):
		return "KIB", KiB
	case strings.HasSuffix(s, "MIB"):
		return "MIB", MiB
	case strings.HasSuffix(s, "GIB"):
		return "GIB", GiB
	case strings.HasSuffix(s, "TIB"):
		return "TIB", TiB
	case strings.HasSuffix(s, "K"):
		return "K", KiB
	case strings.HasSuffix(s, "M"):
		return "M", MiB
	case strings.HasSuffix(s, "G"):
		return "G", GiB
	case strings.HasSuffix(s, "T"):
		return "T", TiB
	case strings.HasSuffix(s, "B"):
		return "B", 1
	default:
		return "", 1
	}
}

/////////////
// SizeIEC //
/////////////

// config-level size: accepts "10240", "10KiB", "1.5M", and the JSON number form

type SizeIEC int64

func (siz SizeIEC) MarshalJSON() ([]byte, error) { return jsoniter.Marshal(siz.String()) }
func (siz SizeIEC) String() string               { return ToSizeIEC(int64(siz), 0) }

func (siz *SizeIEC) UnmarshalJSON(b []byte) (err error) {
	var (
		n   int64
		val string
	)
	if len(b) > 0 && b[0] != '"' {
		n, err = strconv.ParseInt(string(b), 10, 64)
		*siz = SizeIEC(n)
		return
	}
	if err = jsoniter.Unmarshal(b, &val); err != nil {
		return
	}
	n, err = ParseSize(val)
	*siz = SizeIEC(n)
	return
}

// yaml.v3 Unmarshaler
func (siz *SizeIEC) UnmarshalText(b []byte) error {
	n, err := ParseSize(string(b))
	*siz = SizeIEC(n)
	return err
}

func ToSizeIEC(b int64, digits int) string {
	switch {
	case b >= TiB && b%TiB == 0 && digits == 0:
		return fmt.Sprintf("%dTiB", b/TiB)
	case b >= GiB && b%GiB == 0 && digits == 0:
		return fmt.Sprintf("%dGiB", b/GiB)
	case b >= MiB && b%MiB == 0 && digits == 0:
		return fmt.Sprintf("%dMiB", b/MiB)
	case b >= KiB && b%KiB == 0 && digits == 0:
		return fmt.Sprintf("%dKiB", b/KiB)
	case digits > 0 && b >= MiB:
		return fmt.Sprintf("%.*f%s", digits, float64(b)/float64(MiB), "MiB")
	case digits > 0 && b >= KiB:
		return fmt.Sprintf("%.*f%s", digits, float64(b)/float64(KiB), "KiB")
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// all suffixes are binary (tar's own --record-size and --tape-length convention)
func ParseSize(size string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(size))
	if s == "" {
		return 0, nil
	}
	suffix, mult := _suffix(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	if strings.IndexByte(s, '.') >= 0 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("ParseSize %q: %w", size, err)
		}
		return int64(f * float64(mult)), nil
	}
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ParseSize %q: %w", size, err)
	}
	return val * mult, nil
}
