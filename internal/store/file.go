package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// File keeps every key in one JSON document on an afero filesystem.
// Writes go to a temporary file that is renamed over the original.
type File struct {
	fs   afero.Fs
	path string

	mu     sync.Mutex
	data   map[string]json.RawMessage
	closed bool
}

// OpenFile loads path from fsys, starting empty if it does not exist.
func OpenFile(fsys afero.Fs, path string) (*File, error) {
	f := &File{fs: fsys, path: path, data: map[string]json.RawMessage{}}
	b, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case len(b) > 0:
		if err := json.Unmarshal(b, &f.data); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, false, ErrClosed
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.data[key] = json.RawMessage(append([]byte(nil), value...))
	return f.flush()
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	delete(f.data, key)
	return f.flush()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *File) flush() error {
	b, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, b, 0o600); err != nil {
		return err
	}
	return f.fs.Rename(tmp, f.path)
}

var _ KV = (*File)(nil)
