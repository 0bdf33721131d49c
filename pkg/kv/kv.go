// Package kv is a small byte-oriented key-value layer with prefix scans.
//
// Keys are flat strings; callers build namespaces by convention, e.g.
// "vocab:hello". The package provides a BadgerDB-backed store for
// persistence and an in-memory store for tests.
package kv

import (
	"context"
	"errors"
	"iter"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Entry is a key-value pair yielded by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a flat key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan iterates entries whose key starts with prefix, in
	// lexicographic key order. An empty prefix scans everything.
	Scan(ctx context.Context, prefix string) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}
