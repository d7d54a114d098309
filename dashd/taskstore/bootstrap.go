package taskstore

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashsdk"
)

// MaxSeededTasks caps how many checklist items are imported.
const MaxSeededTasks = 200

var uncheckedItem = regexp.MustCompile(`^\s*-\s*\[\s\]\s*(.+?)\s*$`)

// ParseChecklist returns the unchecked "- [ ] title" items of a markdown
// checklist, deduplicated by exact title and capped at MaxSeededTasks.
func ParseChecklist(data []byte) []string {
	var (
		titles []string
		seen   = map[string]struct{}{}
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := uncheckedItem.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
		if len(titles) == MaxSeededTasks {
			break
		}
	}
	return titles
}

// bootstrap seeds an empty, never-bootstrapped document from the legacy
// checklist. The flag is set whether or not anything was imported so the
// scan happens once per store.
func (s *Store) bootstrap(ctx context.Context, doc *Document) {
	defer func() { doc.BootstrapDone = true }()
	if len(doc.Todos) > 0 || len(doc.Completed) > 0 || s.checklistPath == "" {
		return
	}

	data, err := afero.ReadFile(s.fs, s.checklistPath)
	if err != nil {
		if !xerrors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "read legacy checklist", slog.F("path", s.checklistPath), slog.Error(err))
		}
		return
	}
	titles := ParseChecklist(data)
	if len(titles) == 0 {
		return
	}

	now := s.now()
	for _, title := range titles {
		doc.Todos = append(doc.Todos, dashsdk.Task{
			ID:        newID(),
			Title:     title,
			ListName:  dashsdk.DefaultListName,
			CreatedAt: now,
			Source:    dashsdk.TaskSourceSeeded,
		})
	}
	doc.BootstrapSources = append(doc.BootstrapSources, s.checklistPath)
	s.log.Info(ctx, "seeded tasks from legacy checklist",
		slog.F("path", s.checklistPath), slog.F("count", len(titles)))
}
