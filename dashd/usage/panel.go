package usage

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

// MaxModels bounds the model list on a panel.
const MaxModels = 8

const (
	sourceUnconfigured = "not configured"
	sourceStatus       = "status summary"
	messageNotCounted  = "usage counting is not wired up yet"
)

func basePanel(req Request) dashsdk.UsagePanel {
	return dashsdk.UsagePanel{
		Key:           req.Schema.ID,
		Title:         req.Schema.Title,
		Model:         req.Schema.Title,
		MissingFields: []string{},
		Models:        []string{},
		UpdatedAt:     req.Now,
	}
}

// withStats returns p carrying the run counters. Empty panels never show
// them.
func withStats(p dashsdk.UsagePanel, stats RunStats) dashsdk.UsagePanel {
	if p.PanelState == dashsdk.PanelStateEmpty {
		return p
	}
	p.RunningTasks, p.RunningAgents = stats.RunningTasks, stats.RunningAgents
	return p
}

// emptyPanel is shown for an enabled provider with required fields unset.
func emptyPanel(req Request, missing []integrations.Field) dashsdk.UsagePanel {
	p := basePanel(req)
	p.Type = dashsdk.PanelTypeEmpty
	p.PanelState = dashsdk.PanelStateEmpty
	p.Source = sourceUnconfigured
	p.Status = dashsdk.PanelStatusPending
	p.MetricStatus = "configuration incomplete"
	p.Message = "Provider is enabled but not fully configured"
	if len(missing) > 0 {
		p.Message += fmt.Sprintf(" (missing: %s)", missingLabels(missing))
	}
	for _, f := range missing {
		p.MissingFields = append(p.MissingFields, f.Name)
	}
	return p
}

// errorPanel is shown when the upstream call failed.
func errorPanel(req Request, source string, err error) dashsdk.UsagePanel {
	msg := SafeMessage(err)
	p := basePanel(req)
	p.Type = dashsdk.PanelTypeStatus
	p.PanelState = dashsdk.PanelStateError
	p.Source = source
	p.Status = dashsdk.PanelStatusError
	p.MetricStatus = "unavailable"
	p.Message = "Settings saved, but the request failed: " + msg
	p.Notes = msg
	return p
}

// statusOnlyPanel confirms reachability for providers without counters.
func statusOnlyPanel(req Request) dashsdk.UsagePanel {
	p := basePanel(req)
	p.Type = dashsdk.PanelTypeStatus
	p.PanelState = dashsdk.PanelStateStatusOnly
	p.Source = sourceStatus
	p.Status = dashsdk.PanelStatusOK
	p.Message = messageNotCounted
	p.MetricStatus = messageNotCounted
	return p
}

func quotaPanel(req Request, source string) dashsdk.UsagePanel {
	p := basePanel(req)
	p.Type = dashsdk.PanelTypeQuota
	p.PanelState = dashsdk.PanelStateReady
	p.Source = source
	p.Status = dashsdk.PanelStatusOK
	p.MetricStatus = "live"
	return p
}

func missingLabels(fields []integrations.Field) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, f.Label)
	}
	return strings.Join(labels, ", ")
}

// percent returns used/total as a percentage rounded to one decimal, or
// nil when total is zero.
func percent(used, total int64) *float64 {
	if total <= 0 {
		return nil
	}
	v := math.Round(float64(used)/float64(total)*1000) / 10
	return &v
}

// humanDuration renders d as "3h 12m" or "12m".
func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func ptr[T any](v T) *T {
	return &v
}

func capModels(models []string) []string {
	if len(models) > MaxModels {
		return models[:MaxModels]
	}
	if models == nil {
		return []string{}
	}
	return models
}
