package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt is returned when the journal file does not hold a JSON array.
var ErrCorrupt = errors.New("journal file is not a JSON array")

// Journal persists entries as a single JSON array file, rewritten on every append.
type Journal[T any] struct {
	path string
	mu   sync.Mutex
}

func Open[T any](path string) (*Journal[T], error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	return &Journal[T]{path: path}, nil
}

func (j *Journal[T]) Path() string { return j.path }

// Append adds entry to the end of the array and returns the new length.
func (j *Journal[T]) Append(entry T) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := j.read()
	if err != nil {
		return 0, err
	}
	entries = append(entries, entry)
	if err := j.write(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// List returns every entry in file order. A missing file is an empty journal.
func (j *Journal[T]) List() ([]T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read()
}

func (j *Journal[T]) read() ([]T, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := []T{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, j.path, err)
	}
	return entries, nil
}

func (j *Journal[T]) write(entries []T) error {
	buf, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}
