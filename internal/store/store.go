// Package store implements JSON flat-file persistence for bot state.
//
// Two shapes are provided: [Store] keeps a keyed collection (one record per
// user, for example) and [Document] keeps a single value (such as the banner
// rotation state). Both write atomically by staging to a temporary file and
// renaming it over the target, so a crash mid-write never leaves a corrupt
// file behind.
//
// All types are safe for concurrent use.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Get and Delete when the requested record does not
// exist.
var ErrNotFound = errors.New("record not found")

// Store persists a map of string-keyed records of type T to a single JSON
// file. Records are loaded lazily on first access; every mutation is flushed
// to disk before it returns.
type Store[T any] struct {
	mu     sync.RWMutex
	path   string
	loaded bool
	items  map[string]T
}

// New creates a [Store] backed by the JSON file at path. The file does not
// need to exist yet; it is created on the first write.
func New[T any](path string) *Store[T] {
	return &Store[T]{path: path}
}

// Open creates a [Store] and eagerly loads the backing file, surfacing
// corrupt-file errors at startup instead of on first access.
func Open[T any](path string) (*Store[T], error) {
	s := New[T](path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store[T]) Path() string { return s.path }

// Get retrieves the record stored under id.
// Returns [ErrNotFound] when no such record exists.
func (s *Store[T]) Get(id string) (T, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return zero, err
	}
	v, ok := s.items[id]
	if !ok {
		return zero, ErrNotFound
	}
	return v, nil
}

// Put stores value under id, replacing any existing record, and flushes the
// collection to disk.
func (s *Store[T]) Put(id string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.items[id] = value
	return s.flushLocked()
}

// Delete removes the record stored under id and flushes the collection.
// Returns [ErrNotFound] when no such record exists.
func (s *Store[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return s.flushLocked()
}

// All returns a copy of every stored record keyed by id.
func (s *Store[T]) All() (map[string]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]T, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out, nil
}

// Len reports the number of stored records.
func (s *Store[T]) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return 0, err
	}
	return len(s.items), nil
}

// loadLocked reads the backing file into memory once. A missing file is not
// an error; it simply yields an empty collection. Callers must hold mu.
func (s *Store[T]) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.items = make(map[string]T)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			return fmt.Errorf("store: parse %s: %w", s.path, err)
		}
	}
	s.loaded = true
	return nil
}

// flushLocked writes the collection to disk atomically. Callers must hold mu.
func (s *Store[T]) flushLocked() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", s.path, err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic stages data in a temporary file next to path and renames it into
// place. The parent directory is created if needed.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: stage %s: %w", path, err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: stage %s: %w", path, errors.Join(werr, cerr))
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", path, err)
	}
	return nil
}
