package usage

import (
	"context"
	"strings"

	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

// GLM checks that the key can list models on the configured endpoint.
type GLM struct{}

func (*GLM) ID() dashsdk.ProviderID { return dashsdk.ProviderGLM }

func (*GLM) Source() string { return sourceStatus }

func (*GLM) BuildPanel(ctx context.Context, req Request) (dashsdk.UsagePanel, error) {
	base := req.Config.String("base_url")
	if base == "" {
		base = integrations.DefaultGLMBaseURL
	}
	_, err := getJSON(ctx, req.Client, strings.TrimRight(base, "/")+"/models", map[string]string{
		"Authorization": bearer(req.Config.String(integrations.FieldAPIKey)),
	})
	if err != nil {
		return dashsdk.UsagePanel{}, xerrors.Errorf("list glm models: %w", err)
	}
	return statusOnlyPanel(req), nil
}
