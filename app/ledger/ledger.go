package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyRecorded is returned by Record when the fingerprint is already in
// the ledger, typically because another worker delivered the same entry first.
var ErrAlreadyRecorded = errors.New("fingerprint already recorded")

// StorageError wraps a failure of the durable storage behind a ledger.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Ledger is the set of fingerprints of entries already delivered.
// Record persists before returning.
type Ledger interface {
	Load(ctx context.Context) error
	Contains(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, fingerprint string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisKey      string
	DatabaseURL   string
}

// Open constructs the ledger selected by opts.Backend. It does not load it.
func Open(opts Options) (Ledger, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileLedger(opts.Path), nil
	case BackendRedis:
		return NewRedisLedger(NewRedisClient(opts.RedisAddr, opts.RedisPassword), opts.RedisKey), nil
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendPostgres:
		return OpenPostgres(opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", opts.Backend)
	}
}
