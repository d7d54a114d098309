package reminders

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cli/safeexec"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

const (
	// DefaultReminderList is the reminder list the agent writes to.
	DefaultReminderList = "贾维斯的待办"
	DefaultTimeout      = 10 * time.Second
	// DefaultCompletedLimit caps how many completed reminders are synced.
	DefaultCompletedLimit = 500
)

// ErrNotInstalled is returned when the remindctl binary cannot be found.
var ErrNotInstalled = xerrors.New("remindctl not found")

// DefaultSearchDirs are checked when remindctl is not on PATH, which is
// common for services started outside a login shell.
var DefaultSearchDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}

// Remindctl reads Apple Reminders through the remindctl CLI.
type Remindctl struct {
	// Binary overrides binary resolution.
	Binary         string
	ListName       string
	SearchDirs     []string
	Timeout        time.Duration
	CompletedLimit int
}

var _ Source = (*Remindctl)(nil)

// Pending lists open reminders in ListName, falling back to today's
// reminders when the list cannot be read.
func (r *Remindctl) Pending(ctx context.Context) ([]dashsdk.ExternalTask, error) {
	list := r.listName()
	out, err := r.run(ctx, "list", list, "--json")
	if err != nil {
		if xerrors.Is(err, ErrNotInstalled) {
			return nil, err
		}
		out, err = r.run(ctx, "today", "--json")
		if err != nil {
			return nil, err
		}
	}
	tasks, err := Normalize(out, NormalizeOptions{DefaultList: list})
	if err != nil {
		return nil, xerrors.Errorf("parse remindctl output: %w", err)
	}
	return tasks, nil
}

// Completed lists completed reminders, newest first.
func (r *Remindctl) Completed(ctx context.Context) ([]dashsdk.ExternalTask, error) {
	out, err := r.run(ctx, "completed", "--json")
	if err != nil {
		return nil, err
	}
	all, err := Normalize(out, NormalizeOptions{DefaultList: r.listName(), IncludeCompleted: true})
	if err != nil {
		return nil, xerrors.Errorf("parse remindctl output: %w", err)
	}
	tasks := make([]dashsdk.ExternalTask, 0, len(all))
	for _, t := range all {
		if t.Completed {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CompletedAt > tasks[j].CompletedAt
	})
	limit := r.CompletedLimit
	if limit <= 0 {
		limit = DefaultCompletedLimit
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *Remindctl) listName() string {
	if r.ListName != "" {
		return r.ListName
	}
	return DefaultReminderList
}

// Path resolves the remindctl binary.
func (r *Remindctl) Path() (string, error) {
	if r.Binary != "" {
		return r.Binary, nil
	}
	if p, err := safeexec.LookPath("remindctl"); err == nil {
		return p, nil
	}
	dirs := r.SearchDirs
	if dirs == nil {
		dirs = DefaultSearchDirs
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, "remindctl")
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", ErrNotInstalled
}

func (r *Remindctl) run(ctx context.Context, args ...string) ([]byte, error) {
	bin, err := r.Path()
	if err != nil {
		return nil, err
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotInstalled
		}
		if ctx.Err() != nil {
			return nil, xerrors.Errorf("remindctl %s: %w", args[0], ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = "unknown error"
		}
		return nil, xerrors.Errorf("remindctl %s: %s: %w", args[0], detail, err)
	}
	return stdout.Bytes(), nil
}
