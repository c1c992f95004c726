// Package store provides the key-value persistence layer behind the API
// resources. Keys are namespaced strings ("webhook/<id>"), values are JSON
// documents, and listings page through a namespace in key order using opaque
// continuation cursors.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no record exists under the key.
	ErrNotFound = errors.New("store: not found")
	// ErrExists is returned by Create when the key is already taken.
	ErrExists = errors.New("store: key already exists")
)

type Record struct {
	Key   string
	Value []byte
}

// Filter decides whether a scanned record appears in a page. Records it
// rejects still advance the cursor, so a short page does not mean the end of
// the listing.
type Filter func(rec Record) bool

type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
	Filter Filter
}

type ListResult struct {
	Records []Record
	// Cursor continues the listing after this page. Empty when the scan
	// reached the end of the prefix.
	Cursor string
}

type Store interface {
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Create fails with ErrExists if the key is already present.
	Create(ctx context.Context, key string, value []byte) error
	// Replace overwrites the whole value under the key, inserting if absent.
	Replace(ctx context.Context, key string, value []byte) error
}
