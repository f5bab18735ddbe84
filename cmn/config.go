// Package cmn provides the archive session configuration
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NVIDIA/gotar/cmn/archive"
	"github.com/NVIDIA/gotar/cmn/cos"
	"github.com/NVIDIA/gotar/hdr"
	"github.com/NVIDIA/gotar/rbuf"
	"github.com/NVIDIA/gotar/sparse"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const maxConfigSize = 64 * cos.KiB

// compression "auto": by magic on read, by file extension on write
const CompressionAuto = "auto"

type (
	Config struct {
		// dialect: v7, oldgnu, ustar, posix (pax), star, gnu
		Format        string `json:"format" yaml:"format"`
		SparseVersion string `json:"sparse_version,omitempty" yaml:"sparse_version,omitempty"`
		Compression   string `json:"compression,omitempty" yaml:"compression,omitempty"`
		// volume label ('V' header), written at the start of each volume and verified on read
		Label string `json:"label,omitempty" yaml:"label,omitempty"`
		// buntdb file of the member index, none if empty
		Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
		// "keyword=value" (member override), "keyword:=value" (same), "delete=pattern"
		PaxOptions []string `json:"pax_options,omitempty" yaml:"pax_options,omitempty"`

		SubstUID *int64 `json:"subst_uid,omitempty" yaml:"subst_uid,omitempty"`
		SubstGID *int64 `json:"subst_gid,omitempty" yaml:"subst_gid,omitempty"`

		TapeLength     cos.SizeIEC `json:"tape_length,omitempty" yaml:"tape_length,omitempty"`
		BlockingFactor int         `json:"blocking_factor" yaml:"blocking_factor"`
		Checkpoint     int         `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
		Verbosity      int         `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`

		MultiVolume     bool `json:"multi_volume,omitempty" yaml:"multi_volume,omitempty"`
		ReadFullRecords bool `json:"read_full_records,omitempty" yaml:"read_full_records,omitempty"`
		IgnoreZeros     bool `json:"ignore_zeros,omitempty" yaml:"ignore_zeros,omitempty"`
		Incremental     bool `json:"incremental,omitempty" yaml:"incremental,omitempty"`
		NumericOwner    bool `json:"numeric_owner,omitempty" yaml:"numeric_owner,omitempty"`
	}

	ErrInvalidConfig struct {
		Field  string
		Reason string
	}
)

func (e *ErrInvalidConfig) Error() string {
	return "invalid config " + e.Field + ": " + e.Reason
}

func DefaultConfig() *Config {
	return &Config{
		Format:         hdr.FormatGNU.String(),
		BlockingFactor: rbuf.DefaultBlockingFactor,
	}
}

// LoadConfig reads a JSON or YAML config file (by extension, with a fall back
// to the other) over the defaults, and validates it
func LoadConfig(fqn string) (*Config, error) {
	b, err := os.ReadFile(fqn)
	if err != nil {
		return nil, err
	}
	if len(b) > maxConfigSize {
		return nil, errors.Errorf("%s: config file too big (max %s)", fqn, cos.ToSizeIEC(maxConfigSize, 0))
	}
	config := DefaultConfig()
	if err := parseConfig(filepath.Ext(fqn), b, config); err != nil {
		return nil, errors.Wrap(err, fqn)
	}
	return config, config.Validate()
}

// JSON first w/ fall back to YAML, or the other way around
func parseConfig(ext string, b []byte, config *Config) error {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc", ".js":
		if errj := jsoniter.Unmarshal(b, config); errj != nil {
			if erry := yaml.Unmarshal(b, config); erry != nil {
				return errors.Errorf("failed to parse config, errs: (%v, %v)", errj, erry)
			}
		}
	default:
		if erry := yaml.Unmarshal(b, config); erry != nil {
			if errj := jsoniter.Unmarshal(b, config); errj != nil {
				return errors.Errorf("failed to parse config, errs: (%v, %v)", erry, errj)
			}
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if _, ok := hdr.ParseFormat(c.Format); !ok {
		return &ErrInvalidConfig{"format", "unknown archive format " + c.Format}
	}
	if _, err := c.SparseDialect(); err != nil {
		return &ErrInvalidConfig{"sparse_version", err.Error()}
	}
	if c.Compression != CompressionAuto {
		if _, err := archive.ParseCompression(c.Compression); err != nil {
			return &ErrInvalidConfig{"compression", err.Error()}
		}
	}
	if c.BlockingFactor <= 0 || c.BlockingFactor > rbuf.MaxBlockingFactor {
		return &ErrInvalidConfig{"blocking_factor", "must be in range 1.." + strconv.Itoa(rbuf.MaxBlockingFactor)}
	}
	if c.TapeLength < 0 {
		return &ErrInvalidConfig{"tape_length", "negative"}
	}
	if c.TapeLength > 0 && int64(c.TapeLength) < int64(c.RecordSize()) {
		return &ErrInvalidConfig{"tape_length", "smaller than one record (" + cos.ToSizeIEC(int64(c.RecordSize()), 0) + ")"}
	}
	if c.MultiVolume && c.Compression != "" && c.Compression != "none" {
		return &ErrInvalidConfig{"multi_volume", "cannot be used with compression"}
	}
	if c.Checkpoint < 0 {
		return &ErrInvalidConfig{"checkpoint", "negative"}
	}
	if len(c.Label) > hdr.NameSize {
		return &ErrInvalidConfig{"label", "too long"}
	}
	return nil
}

func (c *Config) ArchiveFormat() hdr.Format {
	f, _ := hdr.ParseFormat(c.Format)
	return f
}

// SparseDialect is the pax sparse version to write in POSIX archives
func (c *Config) SparseDialect() (sparse.Dialect, error) {
	return sparse.ParseVersion(c.SparseVersion)
}

func (c *Config) RecordSize() int { return c.BlockingFactor * hdr.BlockSize }
