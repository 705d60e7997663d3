// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitstate

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"
)

// DeserializationError is returned by Load when a saved snapshot exists
// but cannot be read back. It is never recovered from automatically:
// resetting to an empty state would forget milestones such as a completed
// database migration.
type DeserializationError struct {
	Path string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot deserialize unit state %q: %v", e.Path, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// atomicWriteFile is patched in tests to simulate an interrupted write.
var atomicWriteFile = utils.AtomicWriteFile

// FileBackend stores unit state as a YAML document in a single file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a FileBackend that persists to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Read implements Backend.
func (b *FileBackend) Read() (map[string]any, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("unit state file %q", b.path)
	} else if err != nil {
		return nil, &DeserializationError{Path: b.path, Err: err}
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DeserializationError{Path: b.path, Err: err}
	}
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		nv, err := normalize(v)
		if err != nil {
			return nil, &DeserializationError{
				Path: b.path,
				Err:  errors.Annotatef(err, "key %q", k),
			}
		}
		values[k] = nv
	}
	return values, nil
}

// Write implements Backend. The snapshot is written to a temporary file
// next to the target and renamed over it, so an interrupted write leaves
// the previous snapshot in place.
func (b *FileBackend) Write(values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(atomicWriteFile(b.path, data, 0600), "writing %q", b.path)
}

// MemoryBackend keeps the snapshot in memory. It is used when state must
// not touch the disk, as in tests.
type MemoryBackend struct {
	values map[string]any
	Writes int
}

// NewMemoryBackend returns a MemoryBackend holding a copy of initial, or
// nothing if initial is nil.
func NewMemoryBackend(initial map[string]any) *MemoryBackend {
	b := &MemoryBackend{}
	if initial != nil {
		b.values = copyValues(initial)
	}
	return b
}

// Read implements Backend.
func (b *MemoryBackend) Read() (map[string]any, error) {
	if b.values == nil {
		return nil, errors.NotFoundf("unit state")
	}
	return copyValues(b.values), nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(values map[string]any) error {
	b.values = copyValues(values)
	b.Writes++
	return nil
}

// Snapshot returns a copy of the last written snapshot.
func (b *MemoryBackend) Snapshot() map[string]any {
	return copyValues(b.values)
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
