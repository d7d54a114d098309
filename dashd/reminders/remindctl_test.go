package reminders_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/dashboard/dashd/reminders"
	"github.com/openclaw/dashboard/testutil"
)

const fakeRemindctl = `#!/bin/sh
case "$1" in
list)
	if [ "$2" = "Missing" ]; then
		echo "list not found" >&2
		exit 1
	fi
	echo '[{"id":"p1","title":"Pending one","list":"'"$2"'"},{"id":"p2","title":"Done","completed":true}]'
	;;
today)
	echo '{"reminders":[{"id":"t1","title":"Today one"}]}'
	;;
completed)
	echo '[{"id":"c1","title":"Old","completed":true,"completed_at":"2026-10-01T00:00:00Z"},{"id":"c2","title":"New","isCompleted":true,"completionDate":"2026-10-18T00:00:00Z"},{"id":"c3","title":"Open"}]'
	;;
*)
	exit 2
	;;
esac
`

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	p := testutil.WriteFile(t, dir, "remindctl", body)
	require.NoError(t, os.Chmod(p, 0o755))
	return p
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on Windows")
	}
}

func TestRemindctl(t *testing.T) {
	t.Parallel()
	skipWindows(t)

	t.Run("Pending", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{Binary: writeScript(t, t.TempDir(), fakeRemindctl), ListName: "Jarvis"}

		tasks, err := r.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "p1", tasks[0].ID)
		require.Equal(t, "Jarvis", tasks[0].ListName)
	})

	t.Run("FallsBackToToday", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{Binary: writeScript(t, t.TempDir(), fakeRemindctl), ListName: "Missing"}

		tasks, err := r.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "t1", tasks[0].ID)
		require.Equal(t, "Missing", tasks[0].ListName)
	})

	t.Run("Completed", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{Binary: writeScript(t, t.TempDir(), fakeRemindctl)}

		tasks, err := r.Completed(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		require.Equal(t, "c2", tasks[0].ID)
		require.Equal(t, "c1", tasks[1].ID)
		require.Equal(t, reminders.DefaultReminderList, tasks[0].ListName)

		r.CompletedLimit = 1
		tasks, err = r.Completed(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "c2", tasks[0].ID)
	})

	t.Run("FailureDetail", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{Binary: writeScript(t, t.TempDir(), "#!/bin/sh\necho 'access denied' >&2\nexit 1\n")}

		_, err := r.Pending(ctx)
		require.ErrorContains(t, err, "access denied")
		_, err = r.Completed(ctx)
		require.ErrorContains(t, err, "remindctl completed: access denied")
	})

	t.Run("BadOutput", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{Binary: writeScript(t, t.TempDir(), "#!/bin/sh\necho 'not json'\n")}

		_, err := r.Completed(ctx)
		require.ErrorIs(t, err, reminders.ErrInvalidSnapshot)
	})
}

//nolint:paralleltest // Modifies PATH.
func TestRemindctlPath(t *testing.T) {
	skipWindows(t)
	t.Setenv("PATH", t.TempDir())

	t.Run("SearchDirs", func(t *testing.T) {
		dir := t.TempDir()
		want := writeScript(t, dir, fakeRemindctl)
		r := &reminders.Remindctl{SearchDirs: []string{filepath.Join(dir, "missing"), dir}}

		got, err := r.Path()
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("NotInstalled", func(t *testing.T) {
		ctx := testutil.Context(t, testutil.WaitShort)
		r := &reminders.Remindctl{SearchDirs: []string{t.TempDir()}}

		_, err := r.Path()
		require.ErrorIs(t, err, reminders.ErrNotInstalled)
		_, err = r.Pending(ctx)
		require.ErrorIs(t, err, reminders.ErrNotInstalled)
	})
}
