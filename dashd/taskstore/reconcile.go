package taskstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashsdk"
)

// ReconcilePending replaces every externally synced pending task with the
// open records of snapshot. Local and seeded tasks are kept as they are.
// Records without a title, and repeated ids, are dropped. An externally
// synced task that reappears as pending leaves the completed list.
func (s *Store) ReconcilePending(ctx context.Context, snapshot []dashsdk.ExternalTask) (dashsdk.ReconcileResult, error) {
	res := dashsdk.ReconcileResult{Received: len(snapshot)}
	err := s.update(ctx, func(doc *Document) (bool, error) {
		now := s.now()
		prev := externalByID(doc.Todos)
		kept := withoutExternal(doc.Todos)

		batch := make([]dashsdk.Task, 0, len(snapshot))
		ids := map[string]struct{}{}
		for _, rec := range snapshot {
			if rec.Completed {
				continue
			}
			task, ok := fromExternal(rec, now)
			if !ok {
				res.Dropped++
				continue
			}
			if _, dup := ids[task.ID]; dup {
				res.Dropped++
				continue
			}
			ids[task.ID] = struct{}{}
			if p, ok := prev[task.ID]; ok {
				task.CreatedAt = p.CreatedAt
			}
			batch = append(batch, task)
		}

		res.Kept = len(kept)
		res.Synced = len(batch)
		res.Removed = countMissing(prev, ids)
		doc.Todos = append(kept, batch...)
		doc.Completed = dropExternal(doc.Completed, ids)
		doc.LastSync.PendingAt = &now
		return true, nil
	})
	if err != nil {
		return dashsdk.ReconcileResult{}, err
	}
	s.log.Debug(ctx, "reconciled pending tasks",
		slog.F("kept", res.Kept), slog.F("synced", res.Synced), slog.F("removed", res.Removed))
	return res, nil
}

// ReconcileCompleted replaces every externally synced completed task with
// snapshot. Records are treated as completed regardless of their flag;
// missing completion times are stamped now. Externally synced pending
// tasks whose id is in snapshot are removed from the pending list.
func (s *Store) ReconcileCompleted(ctx context.Context, snapshot []dashsdk.ExternalTask) (dashsdk.ReconcileResult, error) {
	res := dashsdk.ReconcileResult{Received: len(snapshot)}
	err := s.update(ctx, func(doc *Document) (bool, error) {
		now := s.now()
		prev := externalByID(doc.Completed)
		pending := externalByID(doc.Todos)
		kept := withoutExternal(doc.Completed)

		batch := make([]dashsdk.Task, 0, len(snapshot))
		ids := map[string]struct{}{}
		for _, rec := range snapshot {
			task, ok := fromExternal(rec, now)
			if !ok {
				res.Dropped++
				continue
			}
			if _, dup := ids[task.ID]; dup {
				res.Dropped++
				continue
			}
			ids[task.ID] = struct{}{}

			at, ok := parseTime(rec.CompletedAt)
			p, seen := prev[task.ID]
			switch {
			case ok:
			case seen && p.CompletedAt != nil:
				at = *p.CompletedAt
			default:
				at = now
			}
			if seen {
				task.CreatedAt = p.CreatedAt
			} else if p, ok := pending[task.ID]; ok {
				task.CreatedAt = p.CreatedAt
			}
			task.Completed = true
			task.CompletedAt = &at
			batch = append(batch, task)
		}

		res.Kept = len(kept)
		res.Synced = len(batch)
		res.Removed = countMissing(prev, ids)
		doc.Completed = append(kept, batch...)
		doc.Todos = dropExternal(doc.Todos, ids)
		doc.LastSync.CompletedAt = &now
		return true, nil
	})
	if err != nil {
		return dashsdk.ReconcileResult{}, err
	}
	s.log.Debug(ctx, "reconciled completed tasks",
		slog.F("kept", res.Kept), slog.F("synced", res.Synced), slog.F("removed", res.Removed))
	return res, nil
}

// fromExternal converts a record into an externally synced pending task.
// ok is false when the record has no usable title.
func fromExternal(rec dashsdk.ExternalTask, now time.Time) (dashsdk.Task, bool) {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return dashsdk.Task{}, false
	}
	listName := strings.TrimSpace(rec.ListName)
	if listName == "" {
		listName = dashsdk.DefaultListName
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = stableID(listName, title)
	}
	return dashsdk.Task{
		ID:        id,
		Title:     title,
		DueDate:   strings.TrimSpace(rec.DueDate),
		ListName:  listName,
		CreatedAt: now,
		Source:    dashsdk.TaskSourceExternalSync,
	}, true
}

// stableID derives an id for records that carry none, so repeated
// snapshots map onto the same task.
func stableID(listName, title string) string {
	sum := sha256.Sum256([]byte(listName + "\x00" + title))
	return "ext-" + hex.EncodeToString(sum[:])[:12]
}

func externalByID(tasks []dashsdk.Task) map[string]dashsdk.Task {
	out := map[string]dashsdk.Task{}
	for _, t := range tasks {
		if t.Source == dashsdk.TaskSourceExternalSync {
			if _, ok := out[t.ID]; !ok {
				out[t.ID] = t
			}
		}
	}
	return out
}

func withoutExternal(tasks []dashsdk.Task) []dashsdk.Task {
	out := make([]dashsdk.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Source != dashsdk.TaskSourceExternalSync {
			out = append(out, t)
		}
	}
	return out
}

// dropExternal removes externally synced tasks whose id is in ids.
func dropExternal(tasks []dashsdk.Task, ids map[string]struct{}) []dashsdk.Task {
	out := make([]dashsdk.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := ids[t.ID]; ok && t.Source == dashsdk.TaskSourceExternalSync {
			continue
		}
		out = append(out, t)
	}
	return out
}

func countMissing(prev map[string]dashsdk.Task, ids map[string]struct{}) int {
	n := 0
	for id := range prev {
		if _, ok := ids[id]; !ok {
			n++
		}
	}
	return n
}
