// Package filedoc persists small JSON documents. Access is serialized by
// an in-process mutex and an advisory file lock, so the server and one-shot
// CLI commands can share a document. Writes replace the file atomically.
package filedoc

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"golang.org/x/xerrors"
)

// LockRetryDelay is how often a contended file lock is retried.
const LockRetryDelay = 100 * time.Millisecond

type File struct {
	path string
	perm os.FileMode

	mu    sync.Mutex
	flock *flock.Flock
}

// New returns a document stored at path. perm is applied after every write.
func New(path string, perm os.FileMode) *File {
	return &File{
		path:  path,
		perm:  perm,
		flock: flock.New(path + ".lock"),
	}
}

func (f *File) Path() string {
	return f.path
}

// Lock acquires exclusive access to the document. The returned func
// releases it.
func (f *File) Lock(ctx context.Context) (func(), error) {
	f.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		f.mu.Unlock()
		return nil, xerrors.Errorf("create directory: %w", err)
	}
	locked, err := f.flock.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		f.mu.Unlock()
		return nil, xerrors.Errorf("lock %s: %w", f.flock.Path(), err)
	}
	if !locked {
		f.mu.Unlock()
		return nil, xerrors.Errorf("lock %s: not acquired", f.flock.Path())
	}
	return func() {
		_ = f.flock.Unlock()
		f.mu.Unlock()
	}, nil
}

// Stat identifies a version of the file on disk.
type Stat struct {
	ModTime time.Time
	Size    int64
}

// Read returns the raw document. A missing file yields an error matching
// os.ErrNotExist. Callers must hold the lock.
func (f *File) Read() ([]byte, Stat, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, Stat{}, err
	}
	st, err := f.Stat()
	if err != nil {
		return nil, Stat{}, err
	}
	return data, st, nil
}

// Stat reports the current file version. Callers must hold the lock.
func (f *File) Stat() (Stat, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return Stat{}, err
	}
	return Stat{ModTime: fi.ModTime(), Size: fi.Size()}, nil
}

// Write encodes v as indented JSON and atomically replaces the document.
// Callers must hold the lock.
func (f *File) Write(v any) (Stat, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return Stat{}, xerrors.Errorf("encode document: %w", err)
	}
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return Stat{}, xerrors.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Chmod(f.path, f.perm); err != nil {
		return Stat{}, xerrors.Errorf("chmod %s: %w", f.path, err)
	}
	return f.Stat()
}

// Quarantine copies the current file next to itself with a .corrupt suffix
// so a reset does not lose the original bytes.
func (f *File) Quarantine(data []byte) (string, error) {
	dst := f.path + ".corrupt"
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return "", xerrors.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}

// Equal reports whether both stats describe the same file version.
func (s Stat) Equal(o Stat) bool {
	return s.Size == o.Size && s.ModTime.Equal(o.ModTime)
}
