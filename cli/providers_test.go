package cli_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/dashboard/cli/clitest"
	"github.com/openclaw/dashboard/dashsdk"
	"github.com/openclaw/dashboard/testutil"
)

const glmKey = "glm-key-0123456789"

func fakeGLM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Header.Get("Authorization") != "Bearer "+glmKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"glm-4"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func findProvider(t *testing.T, res dashsdk.ProvidersResponse, id dashsdk.ProviderID) dashsdk.ProviderView {
	t.Helper()
	for _, p := range res.Providers {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("provider %s missing", id)
	return dashsdk.ProviderView{}
}

func TestProviders(t *testing.T) {
	t.Parallel()

	t.Run("SetAndShow", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, stdout, dirs := clitest.New(t, "providers", "set", "glm",
			"--set", "enabled=true",
			"--set", "api_key="+glmKey,
			"-o", "json",
		)
		require.NoError(t, clitest.Run(t, ctx, inv))
		glm := findProvider(t, decode[dashsdk.ProvidersResponse](t, stdout.String()), dashsdk.ProviderGLM)
		require.True(t, glm.Enabled)
		require.True(t, glm.HasAPIKey)

		inv, stdout, _ = clitest.NewWithDirs(t, dirs, "providers", "show")
		require.NoError(t, clitest.Run(t, ctx, inv))
		out := stdout.String()
		assert.Contains(t, out, "glm-**********6789")
		assert.NotContains(t, out, glmKey)

		// Clearing the secret wins over everything else in the patch.
		inv, stdout, _ = clitest.NewWithDirs(t, dirs, "providers", "set", "glm",
			"--set", dashsdk.ClearSecretKey+"=true",
			"-o", "json",
		)
		require.NoError(t, clitest.Run(t, ctx, inv))
		glm = findProvider(t, decode[dashsdk.ProvidersResponse](t, stdout.String()), dashsdk.ProviderGLM)
		require.False(t, glm.HasAPIKey)
		require.True(t, glm.Enabled)
	})

	t.Run("SetFromFile", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		file := testutil.WriteFile(t, t.TempDir(), "providers.yaml", `
providers:
  openai:
    enabled: true
    project_id: proj_123
  gemini:
    enabled: false
`)
		inv, stdout, _ := clitest.New(t, "providers", "set", "--file", file, "-o", "json")
		require.NoError(t, clitest.Run(t, ctx, inv))
		res := decode[dashsdk.ProvidersResponse](t, stdout.String())
		openai := findProvider(t, res, dashsdk.ProviderOpenAI)
		require.True(t, openai.Enabled)
		require.Equal(t, "proj_123", openai.Fields["project_id"])
		require.False(t, findProvider(t, res, dashsdk.ProviderGemini).Enabled)
	})

	t.Run("SetNeedsInput", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, _, _ := clitest.New(t, "providers", "set")
		require.ErrorContains(t, clitest.Run(t, ctx, inv), "nothing to change")

		inv, _, _ = clitest.New(t, "providers", "set", "--set", "enabled=true")
		require.ErrorContains(t, clitest.Run(t, ctx, inv), "provider argument")

		inv, _, _ = clitest.New(t, "providers", "set", "glm", "--set", "novalue")
		require.ErrorContains(t, clitest.Run(t, ctx, inv), "expected key=value")
	})

	t.Run("Validate", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		upstream := fakeGLM(t)

		inv, _, dirs := clitest.New(t, "providers", "set", "glm", "--set", "api_key="+glmKey)
		require.NoError(t, clitest.Run(t, ctx, inv))

		inv, stdout, _ := clitest.NewWithDirs(t, dirs, "providers", "validate", "glm",
			"--set", "base_url="+upstream.URL,
			"-o", "json",
		)
		require.NoError(t, clitest.Run(t, ctx, inv))
		res := decode[dashsdk.ValidateProviderResponse](t, stdout.String())
		require.True(t, res.Success, res.Message)
		require.NotNil(t, res.Panel)

		inv, _, _ = clitest.NewWithDirs(t, dirs, "providers", "validate", "glm",
			"--set", "base_url="+upstream.URL,
			"--set", "api_key=wrong",
		)
		require.ErrorContains(t, clitest.Run(t, ctx, inv), "HTTP 401")

		// The draft was never saved.
		inv, stdout, _ = clitest.NewWithDirs(t, dirs, "providers", "show", "-o", "json")
		require.NoError(t, clitest.Run(t, ctx, inv))
		glm := findProvider(t, decode[dashsdk.ProvidersResponse](t, stdout.String()), dashsdk.ProviderGLM)
		require.NotEqual(t, upstream.URL, glm.Fields["base_url"])
	})

	t.Run("ValidateUnknown", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, _, _ := clitest.New(t, "providers", "validate", "nope")
		require.Error(t, clitest.Run(t, ctx, inv))
	})
}

func TestUsage(t *testing.T) {
	t.Parallel()

	t.Run("NothingEnabled", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)

		inv, stdout, _ := clitest.New(t, "usage")
		require.NoError(t, clitest.Run(t, ctx, inv))
		require.Contains(t, stdout.String(), "No providers are enabled")
	})

	t.Run("Panels", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		upstream := fakeGLM(t)

		inv, _, dirs := clitest.New(t, "providers", "set", "glm",
			"--set", "enabled=true",
			"--set", "api_key="+glmKey,
			"--set", "base_url="+upstream.URL,
		)
		require.NoError(t, clitest.Run(t, ctx, inv))
		testutil.WriteFile(t, dirs.OpenClaw, "subagents/runs.json",
			`{"runs":{"a":{"status":"running","agentName":"writer"}}}`)

		inv, stdout, _ := clitest.NewWithDirs(t, dirs, "usage", "-o", "json")
		require.NoError(t, clitest.Run(t, ctx, inv))
		panels := decode[[]dashsdk.UsagePanel](t, stdout.String())
		require.Len(t, panels, 1)
		require.Equal(t, dashsdk.ProviderGLM, panels[0].Key)
		require.Equal(t, dashsdk.PanelStateStatusOnly, panels[0].PanelState)
		require.Equal(t, 1, panels[0].RunningTasks)
		require.Equal(t, 1, panels[0].RunningAgents)
	})
}
