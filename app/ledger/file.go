package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLedger keeps the fingerprint set in memory and mirrors it to a JSON
// array on disk. It serves a single process.
type FileLedger struct {
	path string

	mu    sync.Mutex
	set   map[string]struct{}
	order []string
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{
		path: path,
		set:  make(map[string]struct{}),
	}
}

// Load reads the ledger file. A missing file is an empty ledger; an unreadable
// one is moved aside so the next write does not overwrite it.
func (l *FileLedger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.set = make(map[string]struct{})
	l.order = nil

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("Ledger file not found, starting empty", "path", l.path)
		return nil
	}
	if err != nil {
		return &StorageError{Op: "load", Err: err}
	}

	var fingerprints []string
	if err := json.Unmarshal(data, &fingerprints); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", l.path, time.Now().Unix())
		if renameErr := os.Rename(l.path, aside); renameErr != nil {
			slog.Error("Failed to move corrupt ledger file aside", "path", l.path, "error", renameErr)
		} else {
			slog.Warn("Corrupt ledger file moved aside", "path", l.path, "moved_to", aside)
		}
		return &StorageError{Op: "load", Err: fmt.Errorf("failed to decode %s: %w", l.path, err)}
	}

	for _, fingerprint := range fingerprints {
		l.add(fingerprint)
	}

	slog.Info("Ledger loaded", "path", l.path, "entries", len(l.order))
	return nil
}

func (l *FileLedger) Contains(ctx context.Context, fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.set[fingerprint]
	return ok, nil
}

// Record adds the fingerprint and rewrites the file. When the write fails the
// fingerprint stays recorded in memory for the life of the process.
func (l *FileLedger) Record(ctx context.Context, fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.set[fingerprint]; ok {
		return ErrAlreadyRecorded
	}
	l.add(fingerprint)

	if err := l.persist(); err != nil {
		return &StorageError{Op: "record", Err: err}
	}
	return nil
}

func (l *FileLedger) Len(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order), nil
}

func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) add(fingerprint string) {
	if _, ok := l.set[fingerprint]; ok {
		return
	}
	l.set[fingerprint] = struct{}{}
	l.order = append(l.order, fingerprint)
}

// persist writes a temporary file next to the ledger and renames it over the
// old one, so readers never observe a partial file.
func (l *FileLedger) persist() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(l.order, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
