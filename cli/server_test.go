package cli_test

import (
	"context"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/dashboard/cli/clitest"
	"github.com/openclaw/dashboard/dashsdk"
	"github.com/openclaw/dashboard/testutil"
)

var startedRe = regexp.MustCompile(`Started dashboard on (http://\S+)`)

// startServer runs the server command and returns a client for it. The
// server stops when the test ends.
func startServer(t *testing.T, token string, args ...string) (*dashsdk.Client, clitest.Dirs) {
	t.Helper()
	ctx, cancel := context.WithCancel(testutil.Context(t, testutil.WaitLong))
	inv, stdout, dirs := clitest.New(t, append([]string{"server"}, args...)...)
	done := clitest.Start(t, ctx, inv)
	exited := false
	t.Cleanup(func() {
		cancel()
		if !exited {
			require.NoError(t, testutil.TryReceive(testutil.Context(t, testutil.WaitShort), t, done))
		}
	})

	waitCtx := testutil.Context(t, testutil.WaitShort)
	ticker := time.NewTicker(testutil.IntervalFast)
	defer ticker.Stop()
	var serverURL string
	for serverURL == "" {
		select {
		case err := <-done:
			exited = true
			require.FailNow(t, "server exited before listening", "error: %v\nstdout: %s", err, stdout.String())
		case <-waitCtx.Done():
			require.FailNow(t, "server did not start", "stdout: %s", stdout.String())
		case <-ticker.C:
			if m := startedRe.FindStringSubmatch(stdout.String()); m != nil {
				serverURL = m[1]
			}
		}
	}

	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	return dashsdk.New(u, dashsdk.WithToken(token)), dirs
}

func TestServer(t *testing.T) {
	t.Parallel()

	t.Run("Serves", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		client, dirs := startServer(t, "secret",
			"--address", "127.0.0.1:0",
			"--sync-interval", "0",
			"--api-token", "secret",
		)

		task, err := client.CreateTask(ctx, dashsdk.CreateTaskRequest{Title: "From the API"})
		require.NoError(t, err)

		// The CLI sees the server's write through the shared file.
		inv, stdout, _ := clitest.NewWithDirs(t, dirs, "tasks", "list", "-o", "json")
		require.NoError(t, clitest.Run(t, ctx, inv))
		todos := decode[[]dashsdk.Task](t, stdout.String())
		require.Len(t, todos, 1)
		require.Equal(t, task.ID, todos[0].ID)

		status, err := client.Status(ctx, true)
		require.NoError(t, err)
		require.True(t, status.Light)

		inv, stdout, _ = clitest.NewWithDirs(t, dirs, "version", "--server", "-o", "json",
			"--url", client.URL.String(), "--api-token", "secret")
		require.NoError(t, clitest.Run(t, ctx, inv))
		versions := decode[map[string]dashsdk.BuildInfoResponse](t, stdout.String())
		require.Equal(t, versions["client"].Version, versions["server"].Version)

		_, err = dashsdk.New(client.URL).Todos(ctx)
		var apiErr *dashsdk.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 401, apiErr.StatusCode())
	})

	t.Run("ConfigFile", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		config := testutil.WriteFile(t, t.TempDir(), "dashboard.yaml", `
address: 127.0.0.1:0
sync_interval: 0s
api_token: from-file
cors_origins:
  - http://localhost:5173
`)
		client, _ := startServer(t, "from-file", "--config", config)

		res, err := client.Todos(ctx)
		require.NoError(t, err)
		require.Zero(t, res.Count)
	})

	t.Run("ConfigUnknownKey", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		config := testutil.WriteFile(t, t.TempDir(), "dashboard.yaml", "adress: 127.0.0.1:0\n")

		inv, _, _ := clitest.New(t, "server", "--config", config)
		require.ErrorContains(t, clitest.Run(t, ctx, inv), `unknown key "adress"`)
	})
}
