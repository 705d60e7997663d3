// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package unitstate implements the small key/value store a charm unit uses
// to remember, across hook invocations, what it has already learned and
// done.
package unitstate

import (
	"sort"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("cfcharm.unitstate")

// Backend persists a complete snapshot of unit state.
type Backend interface {
	// Read returns the last snapshot written. It returns an error
	// satisfying errors.NotFound if nothing has been written yet.
	Read() (map[string]any, error)

	// Write replaces the stored snapshot with values.
	Write(values map[string]any) error
}

// Store holds the unit state for the duration of a hook invocation.
// Values are strings, bools or ints.
type Store struct {
	backend Backend
	values  map[string]any
}

// NewStore returns an empty Store persisted through backend. Call Load
// to read any previously saved state.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		values:  map[string]any{},
	}
}

// Load replaces the in-memory state with the saved snapshot. If nothing
// was saved before the state becomes empty. A snapshot that exists but
// cannot be read is returned as a *DeserializationError and the in-memory
// state is left untouched.
func (s *Store) Load() error {
	values, err := s.backend.Read()
	if errors.Is(err, errors.NotFound) {
		logger.Debugf("no saved unit state, starting empty")
		s.values = map[string]any{}
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	s.values = values
	return nil
}

// Save writes the whole in-memory state through the backend.
func (s *Store) Save() error {
	return errors.Annotate(s.backend.Write(s.snapshot()), "saving unit state")
}

// Set upserts key. The value must be a string, bool or integer.
func (s *Store) Set(key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return errors.Annotatef(err, "setting %q", key)
	}
	s.values[key] = v
	return nil
}

// SetAndSave sets key and immediately persists the whole state.
func (s *Store) SetAndSave(key string, value any) error {
	if err := s.Set(key, value); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("state value altered: %s -> %v", key, value)
	return s.Save()
}

// SetString upserts a string value.
func (s *Store) SetString(key, value string) { s.values[key] = value }

// SetBool upserts a bool value.
func (s *Store) SetBool(key string, value bool) { s.values[key] = value }

// SetInt upserts an int value.
func (s *Store) SetInt(key string, value int) { s.values[key] = value }

// Delete removes key, if present.
func (s *Store) Delete(key string) { delete(s.values, key) }

// Contains reports whether key has been set.
func (s *Store) Contains(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the value of key, or def if the key is not set.
func (s *Store) Get(key string, def any) any {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// String returns the value of key if it is set and holds a string.
func (s *Store) String(key string) (string, bool) {
	v, ok := s.values[key].(string)
	return v, ok
}

// Bool returns the value of key if it is set and holds a bool.
func (s *Store) Bool(key string) (bool, bool) {
	v, ok := s.values[key].(bool)
	return v, ok
}

// Int returns the value of key if it is set and holds an int.
func (s *Store) Int(key string) (int, bool) {
	v, ok := s.values[key].(int)
	return v, ok
}

// Keys returns the set keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the in-memory state.
func (s *Store) Values() map[string]any {
	return s.snapshot()
}

func (s *Store) snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// normalize returns value as one of the supported scalar types.
func normalize(value any) (any, error) {
	switch v := value.(type) {
	case string, bool, int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		if int64(int(v)) != v {
			return nil, errors.NotValidf("integer %d out of range", v)
		}
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint:
		if int(v) < 0 {
			return nil, errors.NotValidf("integer %d out of range", v)
		}
		return int(v), nil
	case uint64:
		if int(v) < 0 || uint64(int(v)) != v {
			return nil, errors.NotValidf("integer %d out of range", v)
		}
		return int(v), nil
	}
	return nil, errors.NotValidf("value of type %T", value)
}
