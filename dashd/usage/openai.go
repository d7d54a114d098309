package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

const DefaultOpenAIURL = "https://api.openai.com"

type openAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	ProjectID      string `mapstructure:"project_id"`
	OrganizationID string `mapstructure:"organization_id"`
}

// OpenAI counts completion requests over the last day using the
// organization usage API.
type OpenAI struct {
	BaseURL string
}

func (*OpenAI) ID() dashsdk.ProviderID { return dashsdk.ProviderOpenAI }

func (*OpenAI) Source() string { return "official usage API" }

func (o *OpenAI) BuildPanel(ctx context.Context, req Request) (dashsdk.UsagePanel, error) {
	var cfg openAIConfig
	if err := req.Config.Decode(&cfg); err != nil {
		return dashsdk.UsagePanel{}, err
	}
	base := o.BaseURL
	if base == "" {
		base = DefaultOpenAIURL
	}
	end := req.Now.Unix()
	start := req.Now.Add(-24 * time.Hour).Unix()
	url := fmt.Sprintf("%s/v1/organization/usage/completions?start_time=%d&end_time=%d&bucket_width=1d",
		strings.TrimRight(base, "/"), start, end)

	body, err := getJSON(ctx, req.Client, url, map[string]string{
		"Authorization":       bearer(strings.TrimSpace(cfg.APIKey)),
		"OpenAI-Project":      strings.TrimSpace(cfg.ProjectID),
		"OpenAI-Organization": strings.TrimSpace(cfg.OrganizationID),
	})
	if err != nil {
		return dashsdk.UsagePanel{}, xerrors.Errorf("fetch openai usage: %w", err)
	}

	var requests int64
	seen := map[string]struct{}{}
	body.Get("data").ForEach(func(_, bucket gjson.Result) bool {
		bucket.Get("results").ForEach(func(_, result gjson.Result) bool {
			if !result.IsObject() {
				return true
			}
			requests += result.Get("num_model_requests").Int()
			if model := result.Get("model").String(); model != "" {
				seen[model] = struct{}{}
			}
			return true
		})
		return true
	})
	models := make([]string, 0, len(seen))
	for m := range seen {
		models = append(models, m)
	}
	sort.Strings(models)

	p := quotaPanel(req, o.Source())
	p.Used = ptr(requests)
	p.RefreshWindow = ptr("24h rolling")
	p.Models = capModels(models)
	p.Notes = "request count (last 24h)"
	return p, nil
}
