// Package storage implements the key-scoped durable store behind every
// stateful component. Each key holds one JSON document that is always
// replaced as a whole.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Backend.Load when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the interface for raw per-key persistence.
type Backend interface {
	// Load returns the bytes last saved under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save durably replaces the value under key before returning.
	Save(ctx context.Context, key string, data []byte) error
	// Close releases the underlying connection or handle.
	Close() error
}

// Keys names the documents the application persists.
type Keys struct {
	Medications string
	Adherence   string
	Profile     string
}

// NewKeys builds the namespaced key set, e.g. "app_medications".
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "app"
	}
	return Keys{
		Medications: prefix + "_medications",
		Adherence:   prefix + "_adherence",
		Profile:     prefix + "_profile",
	}
}
