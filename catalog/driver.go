// Package catalog keeps an index of archive members: where each member
// starts (volume and block), and its sizes
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package catalog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ## Collection ##
//   The collection is a prefix of a key in the database.
// ## List ##
//   If a pattern is empty, List returns all keys of the collection. A pattern
//   may include '*' and '?'; without either it is a prefix, and a trailing '*'
//   is added automatically.
// ## Errors ##
//   Drivers convert database errors to the errors of this package.

const CollectionSepa = "##"

type (
	Driver interface {
		// sync data on close
		Close() error
		// Set marshals `object` as JSON
		Set(collection, key string, object any) error
		Get(collection, key string, object any) error
		Delete(collection, key string) error
		// keys of the collection that match the pattern, without the collection prefix
		List(collection, pattern string) ([]string, error)
		// map[key]value
		GetAll(collection, pattern string) (map[string]string, error)
	}

	ErrNotFound struct {
		collection string
		key        string
	}
)

func makePath(collection, key string) string { return collection + CollectionSepa + key }

// ParsePath extracts collection and key names from a full key path
func ParsePath(path string) (string, string) {
	pos := strings.Index(path, CollectionSepa)
	if pos < 0 {
		return path, ""
	}
	return path[:pos], path[pos+len(CollectionSepa):]
}

func listPattern(collection, pattern string) string {
	if !strings.ContainsAny(pattern, "*?") {
		pattern += "*"
	}
	return makePath(collection, pattern)
}

func NewErrNotFound(collection, key string) *ErrNotFound {
	return &ErrNotFound{collection: collection, key: key}
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.collection, e.key)
}

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
