package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrPersist wraps every failure to write a checkpoint. A run cannot make
// progress without checkpoints, so callers treat it as fatal.
var ErrPersist = errors.New("failed to persist checkpoint")

// Checkpoint is an ordered collection of records mirrored to a JSON file.
// Every Append rewrites the whole file, so the artifact on disk is always a
// well-formed array and a crash loses at most the record in flight.
type Checkpoint[T any] struct {
	path  string
	items []T
}

// OpenCheckpoint loads path when it exists. A missing or blank file yields an
// empty collection.
func OpenCheckpoint[T any](path string) (*Checkpoint[T], error) {
	items, err := Load[T](path)
	if err != nil {
		return nil, err
	}
	return &Checkpoint[T]{path: path, items: items}, nil
}

// Load reads a JSON array of records. A path whose parent is not a directory
// counts as missing; the failure then surfaces on the first write.
func Load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}

	items := []T{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}

func (c *Checkpoint[T]) Path() string { return c.path }

func (c *Checkpoint[T]) Len() int { return len(c.items) }

// Items returns a copy of the accumulated records.
func (c *Checkpoint[T]) Items() []T {
	return append([]T(nil), c.items...)
}

// Append adds item and rewrites the file.
func (c *Checkpoint[T]) Append(item T) error {
	c.items = append(c.items, item)
	return c.Flush()
}

// Flush writes the full collection atomically.
func (c *Checkpoint[T]) Flush() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.items); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersist, c.path, err)
	}

	if err := writeFileAtomic(c.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersist, c.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
