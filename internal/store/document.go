package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Document persists a single JSON value of type T to a file. It is meant for
// small singleton state such as rotation counters, where a keyed collection
// would be overkill.
type Document[T any] struct {
	mu     sync.Mutex
	path   string
	loaded bool
	value  T
}

// NewDocument creates a [Document] backed by the JSON file at path. The file
// does not need to exist yet; until the first write, Get returns the zero
// value of T.
func NewDocument[T any](path string) *Document[T] {
	return &Document[T]{path: path}
}

// Path returns the location of the backing file.
func (d *Document[T]) Path() string { return d.path }

// Get returns the current value.
func (d *Document[T]) Get() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(); err != nil {
		var zero T
		return zero, err
	}
	return d.value, nil
}

// Set replaces the value and flushes it to disk.
func (d *Document[T]) Set(value T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(); err != nil {
		return err
	}
	d.value = value
	return d.flushLocked()
}

// Update applies fn to the current value under the lock and flushes the
// result. If fn returns an error nothing is written and the stored value
// keeps its previous contents, with one caveat: fn receives a shallow copy,
// so map and slice fields are shared with the stored value. A callback that
// may fail must not mutate those fields before returning its error; mutate
// them only on the success path, or replace them wholesale.
func (d *Document[T]) Update(fn func(*T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(); err != nil {
		return err
	}
	next := d.value
	if err := fn(&next); err != nil {
		return err
	}
	d.value = next
	return d.flushLocked()
}

func (d *Document[T]) loadLocked() error {
	if d.loaded {
		return nil
	}

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		d.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", d.path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d.value); err != nil {
			return fmt.Errorf("store: parse %s: %w", d.path, err)
		}
	}
	d.loaded = true
	return nil
}

func (d *Document[T]) flushLocked() error {
	data, err := json.MarshalIndent(d.value, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", d.path, err)
	}
	return writeAtomic(d.path, data)
}
