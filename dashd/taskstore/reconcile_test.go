package taskstore_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/dashboard/dashsdk"
	"github.com/openclaw/dashboard/testutil"
)

func TestReconcilePending(t *testing.T) {
	t.Parallel()

	t.Run("Idempotent", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)
		snapshot := []dashsdk.ExternalTask{
			{ID: "r1", Title: "Renew passport", DueDate: "2026-11-01", ListName: "Errands"},
			{ID: "r2", Title: "Call dentist"},
			{Title: "No id at all"},
		}

		res, err := f.store.ReconcilePending(ctx, snapshot)
		require.NoError(t, err)
		require.Equal(t, 3, res.Synced)
		first, err := f.store.Todos(ctx)
		require.NoError(t, err)

		f.clock.Advance(time.Hour).MustWait(ctx)
		res, err = f.store.ReconcilePending(ctx, snapshot)
		require.NoError(t, err)
		require.Equal(t, 3, res.Synced)
		require.Equal(t, 0, res.Removed)
		second, err := f.store.Todos(ctx)
		require.NoError(t, err)

		require.Empty(t, cmp.Diff(first, second))
		for _, task := range second {
			require.Equal(t, dashsdk.TaskSourceExternalSync, task.Source)
		}
	})

	t.Run("PreservesLocal", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		local, err := f.store.Create(ctx, "local task", "", "")
		require.NoError(t, err)
		localDone, err := f.store.Create(ctx, "local done", "", "")
		require.NoError(t, err)
		localDone, _, err = f.store.Complete(ctx, localDone.ID)
		require.NoError(t, err)

		_, err = f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{{ID: "r1", Title: "ext"}})
		require.NoError(t, err)
		_, err = f.store.ReconcileCompleted(ctx, []dashsdk.ExternalTask{{ID: "r9", Title: "ext done"}})
		require.NoError(t, err)
		_, err = f.store.ReconcilePending(ctx, nil)
		require.NoError(t, err)
		_, err = f.store.ReconcileCompleted(ctx, nil)
		require.NoError(t, err)

		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		require.Empty(t, cmp.Diff(local, todos[0]))

		completed, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)
		require.Len(t, completed, 1)
		require.Empty(t, cmp.Diff(localDone, completed[0]))
	})

	t.Run("ReplacesStale", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{
			{ID: "r1", Title: "one"}, {ID: "r2", Title: "two"},
		})
		require.NoError(t, err)
		res, err := f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{
			{ID: "r2", Title: "two renamed"}, {ID: "r3", Title: "three"},
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Removed)

		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		titles := map[string]string{}
		for _, task := range todos {
			titles[task.ID] = task.Title
		}
		require.Equal(t, map[string]string{"r2": "two renamed", "r3": "three"}, titles)
	})

	t.Run("DropsBlankDuplicateAndCompleted", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		res, err := f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{
			{ID: "r1", Title: "first"},
			{ID: "r1", Title: "first again"},
			{ID: "r2", Title: "   "},
			{ID: "r3", Title: "already done", Completed: true},
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Synced)
		require.Equal(t, 2, res.Dropped)

		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		require.Equal(t, "first", todos[0].Title)
		require.Equal(t, dashsdk.DefaultListName, todos[0].ListName)
	})

	t.Run("ReopenedExternally", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.store.ReconcileCompleted(ctx, []dashsdk.ExternalTask{{ID: "r1", Title: "water plants"}})
		require.NoError(t, err)
		_, err = f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{{ID: "r1", Title: "water plants"}})
		require.NoError(t, err)

		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		completed, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, completed, "an id is never in both collections")
	})
}

func TestReconcileCompleted(t *testing.T) {
	t.Parallel()

	t.Run("Transitions", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{
			{ID: "r1", Title: "one"}, {ID: "r2", Title: "two"},
		})
		require.NoError(t, err)
		pending, err := f.store.Todos(ctx)
		require.NoError(t, err)
		created := map[string]time.Time{}
		for _, task := range pending {
			created[task.ID] = task.CreatedAt
		}

		f.clock.Advance(time.Minute).MustWait(ctx)
		res, err := f.store.ReconcileCompleted(ctx, []dashsdk.ExternalTask{
			{ID: "r1", Title: "one", CompletedAt: "2026-10-01T12:00:00Z"},
			{ID: "r7", Title: "seven"},
		})
		require.NoError(t, err)
		require.Equal(t, 2, res.Synced)

		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		require.Equal(t, "r2", todos[0].ID)

		completed, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)
		require.Len(t, completed, 2)
		// r7 was stamped now, which is later than r1's explicit time.
		require.Equal(t, "r7", completed[0].ID)
		require.Equal(t, f.clock.Now().UTC(), *completed[0].CompletedAt)
		require.Equal(t, "r1", completed[1].ID)
		require.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), *completed[1].CompletedAt)
		require.Equal(t, created["r1"], completed[1].CreatedAt)
		for _, task := range completed {
			require.True(t, task.Completed)
			require.Equal(t, dashsdk.TaskSourceExternalSync, task.Source)
		}
	})

	t.Run("KeepsCompletionTime", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)
		snapshot := []dashsdk.ExternalTask{{ID: "r1", Title: "one"}}

		_, err := f.store.ReconcileCompleted(ctx, snapshot)
		require.NoError(t, err)
		first, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)

		f.clock.Advance(time.Hour).MustWait(ctx)
		_, err = f.store.ReconcileCompleted(ctx, snapshot)
		require.NoError(t, err)
		second, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first, second))
	})

	t.Run("LocalCompletionOverwritten", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		// A synced task completed on the dashboard but still open upstream
		// comes back as pending on the next pass.
		_, err := f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{{ID: "r1", Title: "one"}})
		require.NoError(t, err)
		_, found, err := f.store.Complete(ctx, "r1")
		require.NoError(t, err)
		require.True(t, found)

		_, err = f.store.ReconcilePending(ctx, []dashsdk.ExternalTask{{ID: "r1", Title: "one"}})
		require.NoError(t, err)
		todos, err := f.store.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		completed, err := f.store.Completed(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, completed)
	})
}
