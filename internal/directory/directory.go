// Package directory provides the process-wide mapping from user identity to
// account actor handle. It is the only state shared across accounts, so it
// must stay safe for concurrent registration and lookup without serializing
// through any single account.
package directory

import (
	"errors"
	"sync"
)

// ErrAlreadyRegistered is returned by Register when the identity already has
// a handle. Exactly one of any number of concurrent Register calls for the
// same identity succeeds.
var ErrAlreadyRegistered = errors.New("directory: identity already registered")

// Directory maps identities to handles. Register is an atomic
// create-if-absent; handles are never replaced or removed through the public
// surface.
type Directory[H any] struct {
	mu      sync.RWMutex
	entries map[string]H
}

// New returns an empty directory.
func New[H any]() *Directory[H] {
	return &Directory[H]{entries: make(map[string]H)}
}

// Register stores handle under identity if no handle exists yet.
func (d *Directory[H]) Register(identity string, handle H) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[identity]; ok {
		return ErrAlreadyRegistered
	}

	d.entries[identity] = handle

	return nil
}

// Lookup returns the handle registered under identity, if any. It never
// blocks on account work and is safe from any number of goroutines.
func (d *Directory[H]) Lookup(identity string) (H, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.entries[identity]

	return h, ok
}

// Len reports the number of registered identities.
func (d *Directory[H]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries)
}
