// Package catalog keeps an index of archive members: where each member
// starts (volume and block), and its sizes
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package catalog

import (
	"strconv"
	"strings"

	"github.com/NVIDIA/gotar/hdr"

	jsoniter "github.com/json-iterator/go"
)

const (
	collMembers = "member"
	collVolumes = "volume"

	idxBlock = "block"
)

type (
	// Entry locates one member
	Entry struct {
		Name        string `json:"name"`
		LinkName    string `json:"linkname,omitempty"`
		Format      string `json:"format"`
		Size        int64  `json:"size"`
		ArchiveSize int64  `json:"archive_size"`
		Mtime       int64  `json:"mtime"`
		Block       int64  `json:"block"` // ordinal of the first header block (prologue included)
		Volno       int    `json:"volno"`
		Typeflag    string `json:"typeflag"`
		Sparse      bool   `json:"sparse,omitempty"`
	}

	Volume struct {
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		Digest uint64 `json:"xxhash"`
		Volno  int    `json:"volno"`
	}

	Catalog struct {
		db *BuntDriver
	}
)

// NewEntry: directories are indexed without the trailing slash, as read back
func NewEntry(st *hdr.Stat, block int64, volno int) *Entry {
	name := st.Name
	if len(name) > 1 {
		name = strings.TrimRight(name, "/")
	}
	return &Entry{
		Name:        name,
		LinkName:    st.LinkName,
		Format:      st.Format.String(),
		Size:        st.Size,
		ArchiveSize: st.ArchiveFileSize,
		Mtime:       st.Mtime.Unix(),
		Block:       block,
		Volno:       volno,
		Typeflag:    string(rune(st.Typeflag)),
		Sparse:      st.IsSparse,
	}
}

// Open opens (or creates) the catalog at `path`; InMemory for a transient one
func Open(path string) (*Catalog, error) {
	db, err := NewBuntDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex(idxBlock, collMembers, idxBlock); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Add indexes a member; a later member of the same name replaces it
func (c *Catalog) Add(e *Entry) error { return c.db.Set(collMembers, e.Name, e) }

func (c *Catalog) Get(name string) (*Entry, error) {
	e := &Entry{}
	if err := c.db.Get(collMembers, name, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Catalog) Delete(name string) error { return c.db.Delete(collMembers, name) }

// List returns member names matching `pattern` (see Driver), sorted by name
func (c *Catalog) List(pattern string) ([]string, error) { return c.db.List(collMembers, pattern) }

// Members returns all entries in archive order
func (c *Catalog) Members() (entries []*Entry, err error) {
	var errU error
	err = c.db.Ascend(idxBlock, func(_, value string) bool {
		e := &Entry{}
		if errU = jsoniter.UnmarshalFromString(value, e); errU != nil {
			return false
		}
		entries = append(entries, e)
		return true
	})
	if err == nil {
		err = errU
	}
	return entries, err
}

func (c *Catalog) AddVolume(v *Volume) error {
	return c.db.Set(collVolumes, strconv.Itoa(v.Volno), v)
}

func (c *Catalog) Volumes() ([]*Volume, error) {
	all, err := c.db.GetAll(collVolumes, "")
	if err != nil {
		return nil, err
	}
	vols := make([]*Volume, len(all))
	for key, value := range all {
		v := &Volume{}
		if err := jsoniter.UnmarshalFromString(value, v); err != nil {
			return nil, err
		}
		i, err := strconv.Atoi(key)
		if err != nil || i < 1 || i > len(vols) {
			return nil, NewErrNotFound(collVolumes, key)
		}
		vols[i-1] = v
	}
	return vols, nil
}
