// Package reminders reads task snapshots from an external reminder source
// and feeds them into the task store's reconciliation passes.
package reminders

import (
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

// ErrInvalidSnapshot is returned when a snapshot is not JSON.
var ErrInvalidSnapshot = xerrors.New("snapshot is not valid JSON")

// MaxDepth bounds how many container keys Normalize follows from the root.
const MaxDepth = 4

// Fallback chains, tried in order. The first non-empty value wins.
var (
	containerKeys = []string{"items", "tasks", "todos", "reminders", "data"}
	groupNameKeys = []string{"list", "list_name", "name", "title"}
	idKeys        = []string{"id", "uuid", "identifier"}
	titleKeys     = []string{"title", "name", "text"}
	dueKeys       = []string{"due", "due_date", "dueDate"}
	listKeys      = []string{"list", "list_name", "listName"}
	doneFlagKeys  = []string{"completed", "isCompleted"}
	doneAtKeys    = []string{"completed_at", "completionDate"}
	doneStatuses  = map[string]bool{"completed": true, "done": true, "closed": true}
)

type NormalizeOptions struct {
	// DefaultList names tasks that carry no list of their own.
	DefaultList string
	// IncludeCompleted keeps records that look completed.
	IncludeCompleted bool
}

// Normalize flattens a snapshot into external task records. Accepted
// shapes are a top-level array of records, or objects whose container key
// holds an array or another such object. Records without a title are
// skipped, and only the first record per id is kept.
func Normalize(raw []byte, opts NormalizeOptions) ([]dashsdk.ExternalTask, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidSnapshot
	}
	if opts.DefaultList == "" {
		opts.DefaultList = dashsdk.DefaultListName
	}
	n := normalizer{opts: opts, seen: map[string]struct{}{}, out: []dashsdk.ExternalTask{}}
	n.walk(gjson.ParseBytes(raw), opts.DefaultList, 0)
	return n.out, nil
}

type normalizer struct {
	opts NormalizeOptions
	seen map[string]struct{}
	out  []dashsdk.ExternalTask
}

func (n *normalizer) walk(node gjson.Result, list string, depth int) {
	if depth > MaxDepth {
		return
	}
	switch {
	case node.IsArray():
		node.ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				n.walk(item, list, depth)
			}
			return true
		})
	case node.IsObject():
		if container, ok := firstContainer(node); ok {
			if name := first(node, groupNameKeys...); name != "" {
				list = name
			}
			n.walk(container, list, depth+1)
			return
		}
		n.record(node, list)
	}
}

func (n *normalizer) record(node gjson.Result, list string) {
	title := first(node, titleKeys...)
	if title == "" {
		return
	}
	id := first(node, idKeys...)
	if id == "" {
		id = "tmp-" + title
	}
	if _, dup := n.seen[id]; dup {
		return
	}
	n.seen[id] = struct{}{}

	completedAt := first(node, doneAtKeys...)
	completed := completedAt != "" || doneStatuses[strings.ToLower(node.Get("status").String())]
	for _, key := range doneFlagKeys {
		completed = completed || node.Get(key).Bool()
	}
	if completed && !n.opts.IncludeCompleted {
		return
	}
	if own := first(node, listKeys...); own != "" {
		list = own
	}

	n.out = append(n.out, dashsdk.ExternalTask{
		ID:          id,
		Title:       title,
		DueDate:     first(node, dueKeys...),
		Completed:   completed,
		CompletedAt: completedAt,
		ListName:    list,
	})
}

func firstContainer(node gjson.Result) (gjson.Result, bool) {
	for _, key := range containerKeys {
		if v := node.Get(key); v.IsArray() || v.IsObject() {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// first returns the first non-blank scalar among keys, trimmed.
func first(node gjson.Result, keys ...string) string {
	for _, key := range keys {
		v := node.Get(key)
		if !v.Exists() || v.IsArray() || v.IsObject() || v.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}
