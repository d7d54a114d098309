package usage

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

const DefaultGeminiURL = "https://generativelanguage.googleapis.com"

// Gemini only checks that the key can list models.
type Gemini struct {
	BaseURL string
}

func (*Gemini) ID() dashsdk.ProviderID { return dashsdk.ProviderGemini }

func (*Gemini) Source() string { return sourceStatus }

func (g *Gemini) BuildPanel(ctx context.Context, req Request) (dashsdk.UsagePanel, error) {
	base := g.BaseURL
	if base == "" {
		base = DefaultGeminiURL
	}
	u := strings.TrimRight(base, "/") + "/v1beta/models?key=" + url.QueryEscape(req.Config.String(integrations.FieldAPIKey))
	if _, err := getJSON(ctx, req.Client, u, nil); err != nil {
		return dashsdk.UsagePanel{}, xerrors.Errorf("list gemini models: %w", err)
	}
	return statusOnlyPanel(req), nil
}
