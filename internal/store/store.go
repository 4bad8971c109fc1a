package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habitxp/internal/db"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no saved state")

// DocumentKey names the single document row in table-backed stores.
const DocumentKey = "main"

// Backend stores one serialized document as a whole.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
	Close() error
}

type Options struct {
	Driver      string
	StatePath   string
	SQLitePath  string
	DatabaseURL string
}

func Open(ctx context.Context, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "file":
		return NewFile(opts.StatePath)
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "postgres", "postgresql":
		pool, err := db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
