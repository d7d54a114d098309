package taskstore

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

// DocumentVersion is written to every saved document.
const DocumentVersion = 1

// Document is the persisted task store.
type Document struct {
	Version          int            `json:"version"`
	UpdatedAt        time.Time      `json:"updated_at"`
	BootstrapDone    bool           `json:"bootstrap_done"`
	BootstrapSources []string       `json:"bootstrap_sources"`
	Todos            []dashsdk.Task `json:"todos"`
	Completed        []dashsdk.Task `json:"completed"`
	LastSync         SyncState      `json:"last_sync"`
}

// SyncState records when each collection was last reconciled.
type SyncState struct {
	PendingAt   *time.Time `json:"pending_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newDocument(now time.Time) *Document {
	return &Document{
		Version:          DocumentVersion,
		UpdatedAt:        now,
		BootstrapSources: []string{},
		Todos:            []dashsdk.Task{},
		Completed:        []dashsdk.Task{},
	}
}

// Tags written by earlier versions of the dashboard.
var legacySources = map[string]dashsdk.TaskSource{
	"apple_reminders": dashsdk.TaskSourceExternalSync,
	"memory_todos_md": dashsdk.TaskSourceSeeded,
}

// rawTask accepts documents written by older releases, which used naive
// timestamps and null due dates.
type rawTask struct {
	ID          string `json:"id"`
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	DueDate     any    `json:"due_date"`
	CompletedAt string `json:"completed_at"`
	ListName    string `json:"list_name"`
	CreatedAt   string `json:"created_at"`
	Source      string `json:"source"`
}

type rawDocument struct {
	Version          int               `json:"version"`
	UpdatedAt        string            `json:"updated_at"`
	BootstrapDone    bool              `json:"bootstrap_done"`
	BootstrapSources []string          `json:"bootstrap_sources"`
	Todos            []json.RawMessage `json:"todos"`
	Completed        []json.RawMessage `json:"completed"`
	LastSync         SyncState         `json:"last_sync"`
}

// decodeDocument parses a stored document. Entries that are not task
// objects or have no id or title are skipped; only a document that is not
// a JSON object at all is an error.
func decodeDocument(data []byte, now time.Time) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, xerrors.Errorf("decode task document: %w", err)
	}
	doc := newDocument(now)
	doc.BootstrapDone = raw.BootstrapDone
	doc.LastSync = raw.LastSync
	if raw.BootstrapSources != nil {
		doc.BootstrapSources = raw.BootstrapSources
	}
	if t, ok := parseTime(raw.UpdatedAt); ok {
		doc.UpdatedAt = t
	}
	doc.Todos = decodeTasks(raw.Todos, false, now)
	doc.Completed = decodeTasks(raw.Completed, true, now)
	return doc, nil
}

func decodeTasks(items []json.RawMessage, completed bool, now time.Time) []dashsdk.Task {
	tasks := make([]dashsdk.Task, 0, len(items))
	for _, item := range items {
		var rt rawTask
		if err := json.Unmarshal(item, &rt); err != nil {
			continue
		}
		id := strings.TrimSpace(rt.ID)
		if id == "" {
			id = strings.TrimSpace(rt.UUID)
		}
		title := strings.TrimSpace(rt.Title)
		if id == "" || title == "" {
			continue
		}
		task := dashsdk.Task{
			ID:        id,
			Title:     title,
			Completed: completed,
			ListName:  rt.ListName,
			CreatedAt: now,
			Source:    dashsdk.TaskSource(rt.Source),
		}
		if s, ok := rt.DueDate.(string); ok {
			task.DueDate = s
		}
		if task.ListName == "" {
			task.ListName = dashsdk.DefaultListName
		}
		if t, ok := parseTime(rt.CreatedAt); ok {
			task.CreatedAt = t
		}
		if mapped, ok := legacySources[rt.Source]; ok {
			task.Source = mapped
		}
		switch task.Source {
		case dashsdk.TaskSourceLocal, dashsdk.TaskSourceExternalSync, dashsdk.TaskSourceSeeded:
		default:
			task.Source = dashsdk.TaskSourceLocal
		}
		if completed {
			at := now
			if t, ok := parseTime(rt.CompletedAt); ok {
				at = t
			}
			task.CompletedAt = &at
		}
		tasks = append(tasks, task)
	}
	return tasks
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the zone-less forms produced by other
// tools. Zone-less values are taken as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func sortPending(tasks []dashsdk.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

func sortCompleted(tasks []dashsdk.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CompletedAt, tasks[j].CompletedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func cloneTasks(tasks []dashsdk.Task) []dashsdk.Task {
	out := make([]dashsdk.Task, len(tasks))
	for i, t := range tasks {
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			t.CompletedAt = &at
		}
		out[i] = t
	}
	return out
}
