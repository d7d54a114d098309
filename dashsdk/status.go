package dashsdk

import (
	"context"
	"net/http"
	"time"
)

type SystemHealth struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskTotal     uint64  `json:"disk_total"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Error         string  `json:"error,omitempty"`
}

type GatewayStatus struct {
	Running bool   `json:"running"`
	PID     int32  `json:"pid,omitempty"`
	Command string `json:"command,omitempty"`
	// StartedAt is unset when the process is not running.
	StartedAt *time.Time `json:"started_at,omitempty" format:"date-time"`
	Error     string     `json:"error,omitempty"`
}

type AgentStats struct {
	RunningTasks  int `json:"running_tasks"`
	RunningAgents int `json:"running_agents"`
	TotalRuns     int `json:"total_runs"`
}

// FullStatus is the aggregated dashboard view. Light responses leave the
// task lists and usage panels empty.
type FullStatus struct {
	Timestamp      time.Time     `json:"timestamp" format:"date-time"`
	Light          bool          `json:"light"`
	System         SystemHealth  `json:"system"`
	Gateway        GatewayStatus `json:"gateway"`
	Agents         AgentStats    `json:"agents"`
	Todos          []Task        `json:"todos"`
	CompletedTasks []Task        `json:"completed_tasks"`
	UsagePanels    []UsagePanel  `json:"usage_panels"`
}

// StatusEvent is pushed over the status websocket.
type StatusEvent struct {
	Type    string     `json:"type"`
	Payload FullStatus `json:"payload"`
}

const StatusEventUpdate = "status_update"

type BuildInfoResponse struct {
	Version     string     `json:"version"`
	ExternalURL string     `json:"external_url"`
	Dev         bool       `json:"dev"`
	BuildTime   *time.Time `json:"build_time,omitempty"`
}

func (c *Client) Status(ctx context.Context, light bool) (FullStatus, error) {
	url := "/api/status"
	if light {
		url += "?light=true"
	}
	return makeRequest[FullStatus](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        url,
		ExpectCode: http.StatusOK,
	})
}

func (c *Client) BuildInfo(ctx context.Context) (BuildInfoResponse, error) {
	return makeRequest[BuildInfoResponse](ctx, c, requestArgs{
		Method:     http.MethodGet,
		URL:        "/api/buildinfo",
		ExpectCode: http.StatusOK,
	})
}
