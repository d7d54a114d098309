package usage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

type miniMaxConfig struct {
	APIKey           string `mapstructure:"api_key"`
	GroupID          string `mapstructure:"group_id"`
	QuotaURL         string `mapstructure:"quota_url"`
	UsageIsRemaining bool   `mapstructure:"usage_is_remaining"`
}

// MiniMax reads the coding-plan quota endpoint. The quota URL may contain
// a "{group_id}" placeholder.
type MiniMax struct{}

func (*MiniMax) ID() dashsdk.ProviderID { return dashsdk.ProviderMiniMax }

func (*MiniMax) Source() string { return "live quota" }

func (m *MiniMax) BuildPanel(ctx context.Context, req Request) (dashsdk.UsagePanel, error) {
	var cfg miniMaxConfig
	if err := req.Config.Decode(&cfg); err != nil {
		return dashsdk.UsagePanel{}, err
	}
	url := strings.TrimSpace(cfg.QuotaURL)
	if groupID := strings.TrimSpace(cfg.GroupID); groupID != "" {
		url = strings.ReplaceAll(url, "{group_id}", groupID)
	}

	body, err := getJSON(ctx, req.Client, url, map[string]string{
		"Authorization": bearer(strings.TrimSpace(cfg.APIKey)),
	})
	if err != nil {
		return dashsdk.UsagePanel{}, xerrors.Errorf("fetch minimax quota: %w", err)
	}

	data := body
	if d := body.Get("data"); d.IsObject() {
		data = d
	}

	var (
		used, total, remaining int64
		models                 []string
		windowEnd              gjson.Result
	)
	data.Get("model_remains").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		itemTotal := item.Get("current_interval_total_count").Int()
		count := max(item.Get("current_interval_usage_count").Int(), 0)
		var itemUsed, itemRemaining int64
		if cfg.UsageIsRemaining {
			itemRemaining = count
			itemUsed = max(itemTotal-itemRemaining, 0)
		} else {
			itemUsed = count
			itemRemaining = max(itemTotal-itemUsed, 0)
		}
		total += itemTotal
		used += itemUsed
		remaining += itemRemaining

		if end := item.Get("end_time"); !windowEnd.Exists() && end.Exists() && end.Type != gjson.Null {
			windowEnd = end
		}
		if name := item.Get("model_name").String(); name != "" {
			models = append(models, name)
		}
		return true
	})

	p := quotaPanel(req, m.Source())
	p.Used = ptr(used)
	p.Total = ptr(total)
	p.Percent = percent(used, total)
	p.RemainingText = ptr(strconv.FormatInt(remaining, 10))
	if ms := windowEnd.Int(); ms > 0 {
		left := time.UnixMilli(ms).Sub(req.Now)
		p.RefreshWindow = ptr(humanDuration(left))
	}
	p.Models = capModels(models)
	return p, nil
}
