package reminders

import (
	"context"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

// FileSource reads snapshots exported to files in the remindctl JSON
// shape. An empty path means that side is not synced.
type FileSource struct {
	FS            afero.Fs
	PendingPath   string
	CompletedPath string
	DefaultList   string
}

var _ Source = (*FileSource)(nil)

// ErrNoSnapshot is returned for a side with no configured file.
var ErrNoSnapshot = xerrors.New("no snapshot file configured")

func (f *FileSource) Pending(_ context.Context) ([]dashsdk.ExternalTask, error) {
	return f.read(f.PendingPath, false)
}

// Completed returns every record from the completed file. Records that do
// not look completed are still treated as completed by the store.
func (f *FileSource) Completed(_ context.Context) ([]dashsdk.ExternalTask, error) {
	return f.read(f.CompletedPath, true)
}

func (f *FileSource) read(path string, completed bool) ([]dashsdk.ExternalTask, error) {
	if path == "" {
		return nil, ErrNoSnapshot
	}
	fs := f.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("read snapshot: %w", err)
	}
	tasks, err := Normalize(data, NormalizeOptions{DefaultList: f.DefaultList, IncludeCompleted: completed})
	if err != nil {
		return nil, xerrors.Errorf("parse %s: %w", path, err)
	}
	return tasks, nil
}
