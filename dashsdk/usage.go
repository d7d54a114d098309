package dashsdk

import (
	"context"
	"net/http"
	"time"
)

// ProviderID names a model provider. The set is closed; see
// integrations.Schemas for the supported ids.
type ProviderID string

const (
	ProviderMiniMax ProviderID = "minimax"
	ProviderOpenAI  ProviderID = "openai"
	ProviderGemini  ProviderID = "gemini"
	ProviderGLM     ProviderID = "glm"
)

type PanelState string

const (
	// PanelStateEmpty means the provider is enabled but not fully configured.
	PanelStateEmpty PanelState = "empty"
	// PanelStateReady carries numeric quota or usage.
	PanelStateReady PanelState = "ready"
	// PanelStateStatusOnly confirms the provider is reachable without counts.
	PanelStateStatusOnly PanelState = "status_only"
	// PanelStateError means the upstream call failed.
	PanelStateError PanelState = "error"
)

type PanelType string

const (
	PanelTypeQuota  PanelType = "quota"
	PanelTypeStatus PanelType = "status"
	PanelTypeEmpty  PanelType = "empty"
)

type PanelStatus string

const (
	PanelStatusOK      PanelStatus = "ok"
	PanelStatusPending PanelStatus = "pending"
	PanelStatusError   PanelStatus = "error"
)

// UsagePanel is a provider-agnostic usage summary. Numeric fields are nil
// when the provider does not report them.
type UsagePanel struct {
	Key           ProviderID  `json:"key"`
	Title         string      `json:"title"`
	Type          PanelType   `json:"type"`
	PanelState    PanelState  `json:"panel_state"`
	Source        string      `json:"source"`
	Status        PanelStatus `json:"status"`
	Message       string      `json:"message"`
	MissingFields []string    `json:"missing_fields"`
	Used          *int64      `json:"used"`
	Total         *int64      `json:"total"`
	Percent       *float64    `json:"percent"`
	RemainingText *string     `json:"remaining_text"`
	RefreshWindow *string     `json:"refresh_window"`
	Models        []string    `json:"models"`
	Model         string      `json:"model"`
	RunningTasks  int         `json:"running_tasks"`
	RunningAgents int         `json:"running_agents"`
	MetricStatus  string      `json:"metric_status"`
	UpdatedAt     time.Time   `json:"updated_at" format:"date-time"`
	Notes         string      `json:"notes,omitempty"`
}

type UsagePanelsResponse struct {
	Panels    []UsagePanel `json:"panels"`
	Timestamp time.Time    `json:"timestamp" format:"date-time"`
}

func (c *Client) UsagePanels(ctx context.Context) (UsagePanelsResponse, error) {
	return makeRequest[UsagePanelsResponse](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        "/api/usage/panels",
		ExpectCode: http.StatusOK,
	})
}
