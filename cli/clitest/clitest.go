// Package clitest runs dashboard commands in-process for tests.
package clitest

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/cli"
)

// Dirs are the per-test directories an invocation reads and writes.
type Dirs struct {
	Data     string
	OpenClaw string
}

// New creates an invocation of the root command whose data and OpenClaw
// directories live under t.TempDir(). Output is captured in the returned
// buffers and the process environment is not inherited.
func New(t testing.TB, args ...string) (*serpent.Invocation, *Buffer, Dirs) {
	t.Helper()
	dirs := Dirs{Data: t.TempDir(), OpenClaw: t.TempDir()}
	return NewWithDirs(t, dirs, args...)
}

// NewWithDirs is New for a second command against the same directories.
func NewWithDirs(t testing.TB, dirs Dirs, args ...string) (*serpent.Invocation, *Buffer, Dirs) {
	t.Helper()
	var root cli.RootCmd
	args = append(args,
		"--data-dir", dirs.Data,
		"--openclaw-dir", dirs.OpenClaw,
	)
	inv := root.Command().Invoke(args...)
	stdout := &Buffer{}
	inv.Stdout = stdout
	inv.Stderr = &Buffer{}
	inv.Stdin = strings.NewReader("")
	return inv, stdout, dirs
}

// Run executes the invocation and returns its error.
func Run(t testing.TB, ctx context.Context, inv *serpent.Invocation) error {
	t.Helper()
	return inv.WithContext(ctx).Run()
}

// Start runs the invocation in the background. The returned channel
// receives its error once it exits.
func Start(t testing.TB, ctx context.Context, inv *serpent.Invocation) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- inv.WithContext(ctx).Run()
	}()
	return done
}

// Buffer is a bytes.Buffer safe for a command writing while a test reads.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
