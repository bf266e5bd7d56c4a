// Package store persists the task list and user settings through a small
// key-value backend. Three backends are provided: SQLite (the default), a
// JSON file on an afero filesystem, and Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pagewatch/pagewatch/internal/task"
)

const (
	KeyTasks    = "tasks"
	KeySettings = "settings"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("store: closed")

// KV is a durable key-value backend.
type KV interface {
	// Get returns the value for key; ok is false if the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store is the typed accessor over a KV backend. Read-modify-write
// cycles through Update are serialized, so concurrent writers never
// lose each other's changes.
type Store struct {
	kv KV
	mu sync.Mutex
}

// New wraps kv in a Store.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Tasks returns the stored task list. A missing key yields an empty list.
func (s *Store) Tasks(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := s.load(ctx, KeyTasks, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// SetTasks replaces the stored task list.
func (s *Store) SetTasks(ctx context.Context, tasks []task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, KeyTasks, tasks)
}

// Task returns the task with the given id.
func (s *Store) Task(ctx context.Context, id string) (task.Task, bool, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return task.Task{}, false, err
	}
	i := task.Index(tasks, id)
	if i < 0 {
		return task.Task{}, false, nil
	}
	return tasks[i], true, nil
}

// Update loads the task list, passes it to fn and stores the result.
// If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func([]task.Task) ([]task.Task, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return err
	}
	tasks, err = fn(tasks)
	if err != nil {
		return err
	}
	return s.save(ctx, KeyTasks, tasks)
}

// Settings returns the stored settings, or the zero value.
func (s *Store) Settings(ctx context.Context) (task.Settings, error) {
	var st task.Settings
	err := s.load(ctx, KeySettings, &st)
	return st, err
}

// SetSettings replaces the stored settings.
func (s *Store) SetSettings(ctx context.Context, st task.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, KeySettings, st)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	b, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("store: get %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, b); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}
