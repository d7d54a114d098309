// Package taskstore persists the dashboard's pending and completed tasks.
//
// The store is a single JSON document. Every operation takes the document
// lock, loads the document (re-reading it only if the file changed on
// disk), mutates it and writes it back. Tasks carry a provenance tag:
// reconciliation against an external source replaces only tasks tagged
// external_sync and never touches local or seeded ones.
package taskstore

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashd/filedoc"
	"github.com/openclaw/dashboard/dashsdk"
)

// DefaultCompletedLimit is used when no limit is given for completed tasks.
const DefaultCompletedLimit = 20

// ErrEmptyTitle is returned when a task title is blank after trimming.
var ErrEmptyTitle = xerrors.New("task title must not be empty")

type Options struct {
	// Path of the JSON document.
	Path string
	// ChecklistPath is the legacy markdown checklist imported once into an
	// empty store. Empty disables the import.
	ChecklistPath string
	// FS reads the checklist. Defaults to the OS filesystem.
	FS     afero.Fs
	Clock  quartz.Clock
	Logger slog.Logger
}

type Store struct {
	log           slog.Logger
	clock         quartz.Clock
	fs            afero.Fs
	checklistPath string
	file          *filedoc.File

	// Guarded by the file lock.
	doc  *Document
	stat filedoc.Stat
}

func New(opts Options) *Store {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &Store{
		log:           opts.Logger,
		clock:         opts.Clock,
		fs:            opts.FS,
		checklistPath: opts.ChecklistPath,
		file:          filedoc.New(opts.Path, 0o644),
	}
}

func (s *Store) Path() string {
	return s.file.Path()
}

// Create adds a local task to the front of the pending list.
func (s *Store) Create(ctx context.Context, title, listName, dueDate string) (dashsdk.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return dashsdk.Task{}, ErrEmptyTitle
	}
	listName = strings.TrimSpace(listName)
	if listName == "" {
		listName = dashsdk.DefaultListName
	}

	var task dashsdk.Task
	err := s.update(ctx, func(doc *Document) (bool, error) {
		task = dashsdk.Task{
			ID:        newID(),
			Title:     title,
			DueDate:   strings.TrimSpace(dueDate),
			ListName:  listName,
			CreatedAt: s.now(),
			Source:    dashsdk.TaskSourceLocal,
		}
		doc.Todos = append([]dashsdk.Task{task}, doc.Todos...)
		return true, nil
	})
	if err != nil {
		return dashsdk.Task{}, err
	}
	s.log.Debug(ctx, "task created", slog.F("task_id", task.ID))
	return task, nil
}

// Complete moves the first pending task with the given id to the completed
// list. found is false when no pending task has that id.
func (s *Store) Complete(ctx context.Context, id string) (task dashsdk.Task, found bool, err error) {
	err = s.update(ctx, func(doc *Document) (bool, error) {
		i := indexOf(doc.Todos, id)
		if i < 0 {
			return false, nil
		}
		task = doc.Todos[i]
		at := s.now()
		task.Completed = true
		task.CompletedAt = &at
		doc.Todos = remove(doc.Todos, i)
		doc.Completed = append([]dashsdk.Task{task}, doc.Completed...)
		found = true
		return true, nil
	})
	return task, found, err
}

// Reopen moves a completed task back to the front of the pending list.
func (s *Store) Reopen(ctx context.Context, id string) (task dashsdk.Task, found bool, err error) {
	err = s.update(ctx, func(doc *Document) (bool, error) {
		i := indexOf(doc.Completed, id)
		if i < 0 {
			return false, nil
		}
		task = doc.Completed[i]
		task.Completed = false
		task.CompletedAt = nil
		doc.Completed = remove(doc.Completed, i)
		doc.Todos = append([]dashsdk.Task{task}, doc.Todos...)
		found = true
		return true, nil
	})
	return task, found, err
}

// Delete removes a pending task. Completed tasks cannot be deleted.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(doc *Document) (bool, error) {
		i := indexOf(doc.Todos, id)
		if i < 0 {
			return false, nil
		}
		doc.Todos = remove(doc.Todos, i)
		deleted = true
		return true, nil
	})
	return deleted, err
}

// Todos returns pending tasks, newest first.
func (s *Store) Todos(ctx context.Context) ([]dashsdk.Task, error) {
	var tasks []dashsdk.Task
	err := s.view(ctx, func(doc *Document) {
		tasks = cloneTasks(doc.Todos)
	})
	if err != nil {
		return nil, err
	}
	sortPending(tasks)
	return tasks, nil
}

// Completed returns completed tasks, most recently completed first. A
// limit of zero or less returns every task.
func (s *Store) Completed(ctx context.Context, limit int) ([]dashsdk.Task, error) {
	var tasks []dashsdk.Task
	err := s.view(ctx, func(doc *Document) {
		tasks = cloneTasks(doc.Completed)
	})
	if err != nil {
		return nil, err
	}
	sortCompleted(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Stats summarizes the store.
type Stats struct {
	Pending          int
	Completed        int
	BySource         map[dashsdk.TaskSource]int
	BootstrapSources []string
	LastSync         SyncState
	UpdatedAt        time.Time
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.view(ctx, func(doc *Document) {
		st = Stats{
			Pending:          len(doc.Todos),
			Completed:        len(doc.Completed),
			BySource:         map[dashsdk.TaskSource]int{},
			BootstrapSources: append([]string(nil), doc.BootstrapSources...),
			LastSync:         doc.LastSync,
			UpdatedAt:        doc.UpdatedAt,
		}
		for _, t := range doc.Todos {
			st.BySource[t.Source]++
		}
		for _, t := range doc.Completed {
			st.BySource[t.Source]++
		}
	})
	return st, err
}

func (s *Store) view(ctx context.Context, fn func(doc *Document)) error {
	return s.update(ctx, func(doc *Document) (bool, error) {
		fn(doc)
		return false, nil
	})
}

// update runs fn against the current document under the lock and saves
// the document if fn reports a change.
func (s *Store) update(ctx context.Context, fn func(doc *Document) (bool, error)) error {
	unlock, err := s.file.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.save(doc)
}

// load returns the cached document unless the file changed underneath it.
// Corrupt documents are quarantined and replaced with an empty one.
func (s *Store) load(ctx context.Context) (*Document, error) {
	st, err := s.file.Stat()
	if err == nil && s.doc != nil && st.Equal(s.stat) {
		return s.doc, nil
	}

	now := s.now()
	doc := newDocument(now)
	data, st, err := s.file.Read()
	switch {
	case err == nil:
		decoded, err := decodeDocument(data, now)
		if err != nil {
			dst, qerr := s.file.Quarantine(data)
			s.log.Warn(ctx, "task document unreadable, starting empty",
				slog.F("path", s.file.Path()),
				slog.F("quarantined", dst),
				slog.Error(err),
			)
			if qerr != nil {
				s.log.Warn(ctx, "quarantine task document", slog.Error(qerr))
			}
		} else {
			doc = decoded
		}
	case xerrors.Is(err, os.ErrNotExist):
	default:
		s.log.Warn(ctx, "read task document, starting empty", slog.Error(err))
	}

	s.doc, s.stat = doc, st
	if !doc.BootstrapDone {
		s.bootstrap(ctx, doc)
		if err := s.save(doc); err != nil {
			return nil, err
		}
	}
	return s.doc, nil
}

func (s *Store) save(doc *Document) error {
	doc.Version = DocumentVersion
	doc.UpdatedAt = s.now()
	st, err := s.file.Write(doc)
	if err != nil {
		// Drop the cache so the next operation sees what is on disk.
		s.doc = nil
		return xerrors.Errorf("save tasks: %w", err)
	}
	s.doc, s.stat = doc, st
	return nil
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// newID returns 12 hex characters of a random UUID.
func newID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

func indexOf(tasks []dashsdk.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func remove(tasks []dashsdk.Task, i int) []dashsdk.Task {
	out := make([]dashsdk.Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...)
}
