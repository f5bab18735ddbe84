// Package catalog keeps an index of archive members: where each member
// starts (volume and block), and its sizes
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package catalog

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// InMemory opens a catalog that is never persisted
const InMemory = ":memory:"

type BuntDriver struct {
	driver *buntdb.DB
}

// interface guard
var _ Driver = (*BuntDriver)(nil)

func NewBuntDB(path string) (*BuntDriver, error) {
	driver, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %q", path)
	}
	// the catalog is rebuilt from the archive at any time: favor speed
	err = driver.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkPercentage: 100,
		AutoShrinkMinSize:    4 * 1024 * 1024,
	})
	if err != nil {
		driver.Close()
		return nil, err
	}
	return &BuntDriver{driver: driver}, nil
}

func (bd *BuntDriver) Close() error { return bd.driver.Close() }

// CreateIndex orders the keys of a collection by a JSON field of their values
func (bd *BuntDriver) CreateIndex(name, collection, field string) error {
	return bd.driver.CreateIndex(name, makePath(collection, "*"), buntdb.IndexJSON(field))
}

func (bd *BuntDriver) Set(collection, key string, object any) error {
	b, err := jsoniter.Marshal(object)
	if err != nil {
		return err
	}
	return bd.driver.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(makePath(collection, key), string(b), nil)
		return err
	})
}

func (bd *BuntDriver) Get(collection, key string, object any) error {
	s, err := bd.GetString(collection, key)
	if err != nil {
		return err
	}
	return jsoniter.UnmarshalFromString(s, object)
}

func (bd *BuntDriver) GetString(collection, key string) (value string, err error) {
	err = bd.driver.View(func(tx *buntdb.Tx) error {
		value, err = tx.Get(makePath(collection, key))
		return err
	})
	if err == buntdb.ErrNotFound {
		err = NewErrNotFound(collection, key)
	}
	return value, err
}

func (bd *BuntDriver) Delete(collection, key string) error {
	err := bd.driver.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(makePath(collection, key))
		return err
	})
	if err == buntdb.ErrNotFound {
		return NewErrNotFound(collection, key)
	}
	return err
}

func (bd *BuntDriver) List(collection, pattern string) ([]string, error) {
	keys := make([]string, 0, 16)
	err := bd.driver.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(listPattern(collection, pattern), func(path, _ string) bool {
			_, key := ParsePath(path)
			keys = append(keys, key)
			return true
		})
	})
	return keys, err
}

func (bd *BuntDriver) GetAll(collection, pattern string) (map[string]string, error) {
	values := make(map[string]string, 16)
	err := bd.driver.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(listPattern(collection, pattern), func(path, val string) bool {
			_, key := ParsePath(path)
			values[key] = val
			return true
		})
	})
	return values, err
}

// Ascend walks the values of `index` in order
func (bd *BuntDriver) Ascend(index string, fn func(key, value string) bool) error {
	return bd.driver.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(index, func(path, val string) bool {
			_, key := ParsePath(path)
			return fn(key, val)
		})
	})
}
