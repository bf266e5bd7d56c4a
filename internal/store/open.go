package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir holds the SQLite database or JSON file.
	Dir   string
	Redis RedisOptions
}

// Open opens the configured backend and wraps it in a Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch opts.Backend {
	case "", BackendSQLite:
		kv, err = OpenSQLite(filepath.Join(opts.Dir, "pagewatch.db"))
	case BackendFile:
		kv, err = OpenFile(afero.NewOsFs(), filepath.Join(opts.Dir, "pagewatch.json"))
	case BackendRedis:
		kv, err = OpenRedis(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}
