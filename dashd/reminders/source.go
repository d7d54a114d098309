package reminders

import (
	"context"

	"github.com/openclaw/dashboard/dashsdk"
)

// Source fetches full snapshots from an external task source.
type Source interface {
	Pending(ctx context.Context) ([]dashsdk.ExternalTask, error)
	Completed(ctx context.Context) ([]dashsdk.ExternalTask, error)
}
