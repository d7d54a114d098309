package dashd_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashd"
	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashd/resultcache"
	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
	"github.com/openclaw/dashboard/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoleakOptions...)
}

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeProbe struct{}

func (fakeProbe) System(context.Context) dashsdk.SystemHealth {
	return dashsdk.SystemHealth{CPUPercent: 3.5, MemoryPercent: 40}
}

func (fakeProbe) Gateway(context.Context) dashsdk.GatewayStatus {
	return dashsdk.GatewayStatus{Running: true, PID: 7}
}

type fixture struct {
	api      *dashd.API
	srv      *httptest.Server
	client   *dashsdk.Client
	clock    *quartz.Mock
	upstream *httptest.Server
}

type fixtureOptions struct {
	token string
}

func setup(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := testutil.Context(t, testutil.WaitShort)
	dir := t.TempDir()
	logger := testutil.Logger(t)

	clock := quartz.NewMock(t)
	clock.Set(testNow).MustWait(ctx)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(upstream.Close)

	reg := prometheus.NewRegistry()
	cache := resultcache.New(resultcache.WithClock(clock))
	tasks := taskstore.New(taskstore.Options{
		Path:   filepath.Join(dir, "tasks.json"),
		Clock:  clock,
		Logger: logger,
	})
	settings := integrations.NewStore(filepath.Join(dir, "integrations.json"), logger)
	agg := usage.New(usage.Options{
		Config:     settings,
		Cache:      cache,
		Registry:   usage.NewRegistry(&usage.GLM{}),
		HTTPClient: upstream.Client(),
		Clock:      clock,
		Logger:     logger,
		Registerer: reg,
	})
	api := dashd.New(&dashd.Options{
		Logger:       logger,
		Clock:        clock,
		Tasks:        tasks,
		Integrations: settings,
		Usage:        agg,
		Status: statuscollector.New(statuscollector.Options{
			System: fakeProbe{},
			Tasks:  tasks,
			Usage:  agg,
			Cache:  cache,
			Clock:  clock,
			Logger: logger,
		}),
		PrometheusRegistry: reg,
		APIToken:           opts.token,
	})
	srv := httptest.NewServer(api.RootHandler)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = api.Close() })

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &fixture{
		api:      api,
		srv:      srv,
		client:   dashsdk.New(u, dashsdk.WithToken(opts.token)),
		clock:    clock,
		upstream: upstream,
	}
}

func requireStatus(t *testing.T, err error, code int) {
	t.Helper()
	var apiErr *dashsdk.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.StatusCode())
}

func TestTasks(t *testing.T) {
	t.Parallel()

	t.Run("Lifecycle", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		task, err := f.client.CreateTask(ctx, dashsdk.CreateTaskRequest{Title: "  Water plants  "})
		require.NoError(t, err)
		require.Equal(t, "Water plants", task.Title)
		require.Equal(t, dashsdk.DefaultListName, task.ListName)

		todos, err := f.client.Todos(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, todos.Count)

		done, err := f.client.CompleteTask(ctx, task.ID)
		require.NoError(t, err)
		require.True(t, done.Completed)

		// Mutations drop the cached lists.
		todos, err = f.client.Todos(ctx)
		require.NoError(t, err)
		require.Zero(t, todos.Count)
		completed, err := f.client.CompletedTasks(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, completed.Count)

		reopened, err := f.client.ReopenTask(ctx, task.ID)
		require.NoError(t, err)
		require.False(t, reopened.Completed)

		require.NoError(t, f.client.DeleteTask(ctx, task.ID))
		todos, err = f.client.Todos(ctx)
		require.NoError(t, err)
		require.Empty(t, todos.Tasks)
	})

	t.Run("BlankTitle", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		_, err := f.client.CreateTask(ctx, dashsdk.CreateTaskRequest{Title: "   "})
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		_, err := f.client.CompleteTask(ctx, "missing")
		requireStatus(t, err, http.StatusNotFound)
		_, err = f.client.ReopenTask(ctx, "missing")
		requireStatus(t, err, http.StatusNotFound)
		err = f.client.DeleteTask(ctx, "missing")
		requireStatus(t, err, http.StatusNotFound)
	})

	t.Run("CompletedLimitOutOfRange", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		_, err := f.client.CompletedTasks(ctx, dashd.MaxCompletedLimit+1)
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("Sync", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		local, err := f.client.CreateTask(ctx, dashsdk.CreateTaskRequest{Title: "Local"})
		require.NoError(t, err)

		pending := []dashsdk.ExternalTask{{Title: "From phone", ListName: "Inbox"}}
		res, err := f.client.SyncTasks(ctx, dashsdk.SyncTasksRequest{Pending: &pending})
		require.NoError(t, err)
		require.NotNil(t, res.Pending)
		require.Nil(t, res.Completed)
		assert.Equal(t, 1, res.Pending.Synced)

		todos, err := f.client.Todos(ctx)
		require.NoError(t, err)
		require.Len(t, todos.Tasks, 2)
		ids := []string{todos.Tasks[0].ID, todos.Tasks[1].ID}
		require.Contains(t, ids, local.ID)

		_, err = f.client.SyncTasks(ctx, dashsdk.SyncTasksRequest{})
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func TestProviders(t *testing.T) {
	t.Parallel()

	t.Run("UpdateMasksSecret", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		res, err := f.client.UpdateProviders(ctx, dashsdk.UpdateProvidersRequest{
			Providers: map[dashsdk.ProviderID]map[string]any{
				dashsdk.ProviderGLM: {"enabled": true, "api_key": "good-key-that-is-long", "base_url": f.upstream.URL},
			},
		})
		require.NoError(t, err)
		var glm *dashsdk.ProviderView
		for i := range res.Providers {
			if res.Providers[i].ID == dashsdk.ProviderGLM {
				glm = &res.Providers[i]
			}
		}
		require.NotNil(t, glm)
		require.True(t, glm.Enabled)
		require.True(t, glm.HasAPIKey)
		require.NotContains(t, glm.APIKeyMasked, "good-key-that-is-long")

		again, err := f.client.Providers(ctx)
		require.NoError(t, err)
		require.Equal(t, res, again)
	})

	t.Run("PanelsFollowSettings", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		panels, err := f.client.UsagePanels(ctx)
		require.NoError(t, err)
		require.Empty(t, panels.Panels)

		_, err = f.client.UpdateProviders(ctx, dashsdk.UpdateProvidersRequest{
			Providers: map[dashsdk.ProviderID]map[string]any{
				dashsdk.ProviderGLM: {"enabled": true, "api_key": "good-key", "base_url": f.upstream.URL},
			},
		})
		require.NoError(t, err)

		panels, err = f.client.UsagePanels(ctx)
		require.NoError(t, err)
		require.Len(t, panels.Panels, 1)
		require.Equal(t, dashsdk.ProviderGLM, panels.Panels[0].Key)
		require.Equal(t, dashsdk.PanelStateStatusOnly, panels.Panels[0].PanelState)
	})

	t.Run("Validate", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		res, err := f.client.ValidateProvider(ctx, dashsdk.ProviderGLM, dashsdk.ValidateProviderRequest{
			Config: map[string]any{"api_key": "good-key", "base_url": f.upstream.URL},
		})
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)
		require.NotNil(t, res.Panel)

		res, err = f.client.ValidateProvider(ctx, dashsdk.ProviderGLM, dashsdk.ValidateProviderRequest{
			Config: map[string]any{"api_key": "bad-key", "base_url": f.upstream.URL},
		})
		require.NoError(t, err)
		require.False(t, res.Success)
		require.NotContains(t, res.Message, "bad-key")

		// Validation never saves the draft.
		saved, err := f.client.Providers(ctx)
		require.NoError(t, err)
		for _, p := range saved.Providers {
			require.False(t, p.HasAPIKey, p.ID)
		}

		_, err = f.client.ValidateProvider(ctx, "nope", dashsdk.ValidateProviderRequest{})
		requireStatus(t, err, http.StatusBadRequest)
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("Light", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		_, err := f.client.CreateTask(ctx, dashsdk.CreateTaskRequest{Title: "Visible"})
		require.NoError(t, err)

		full, err := f.client.Status(ctx, false)
		require.NoError(t, err)
		require.False(t, full.Light)
		require.Len(t, full.Todos, 1)
		require.True(t, full.Gateway.Running)

		light, err := f.client.Status(ctx, true)
		require.NoError(t, err)
		require.True(t, light.Light)
		require.Empty(t, light.Todos)
		require.Equal(t, 3.5, light.System.CPUPercent)
	})

	t.Run("BuildInfo", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{})

		info, err := f.client.BuildInfo(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, info.Version)
		require.True(t, info.Dev)
	})

	t.Run("HealthzAndMetrics", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t, fixtureOptions{token: "secret"})

		// Neither endpoint sits behind the API token.
		for _, path := range []string{"/healthz", "/metrics"} {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+path, nil)
			require.NoError(t, err)
			res, err := f.srv.Client().Do(req)
			require.NoError(t, err)
			_ = res.Body.Close()
			require.Equal(t, http.StatusOK, res.StatusCode, path)
		}
	})
}

func TestAPIToken(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)
	f := setup(t, fixtureOptions{token: "secret"})

	_, err := f.client.Todos(ctx)
	require.NoError(t, err)

	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	_, err = dashsdk.New(u, dashsdk.WithToken("wrong")).Todos(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = dashsdk.New(u).Todos(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestStatusWebsocket(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)
	f := setup(t, fixtureOptions{token: "secret"})

	trap := f.clock.Trap().TickerFunc("dashd", "status_push")
	defer trap.Close()

	wsURL := "ws" + f.srv.URL[len("http"):] + "/api/ws?token=secret"
	conn, res, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	if res.Body != nil {
		_ = res.Body.Close()
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var event dashsdk.StatusEvent
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	require.Equal(t, dashsdk.StatusEventUpdate, event.Type)
	require.True(t, event.Payload.Light)

	trap.MustWait(ctx).MustRelease(ctx)
	f.clock.Advance(dashd.DefaultStatusPushInterval).MustWait(ctx)

	event = dashsdk.StatusEvent{}
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	require.Equal(t, dashsdk.StatusEventUpdate, event.Type)
	require.Equal(t, 7, int(event.Payload.Gateway.PID))

	// Closing the API ends the stream. Close waits for the handler, which
	// waits for the client to answer the close frame.
	closed := make(chan error, 1)
	go func() { closed <- f.api.Close() }()
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	require.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	require.NoError(t, testutil.TryReceive(ctx, t, closed))
}
