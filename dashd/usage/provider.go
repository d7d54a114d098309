package usage

import (
	"context"
	"net/http"
	"time"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

// RunStats are agent counters copied onto every configured panel.
type RunStats struct {
	RunningTasks  int
	RunningAgents int
}

// Request is everything a provider needs to build its panel.
type Request struct {
	Schema integrations.Schema
	// Config is the effective config: stored values with fallbacks applied.
	Config integrations.Config
	Client *http.Client
	Now    time.Time
}

// Provider builds the panel for one upstream. BuildPanel is only called
// once every required field is present; any error it returns is turned
// into an error panel by the caller.
type Provider interface {
	ID() dashsdk.ProviderID
	// Source labels where the panel's numbers come from.
	Source() string
	BuildPanel(ctx context.Context, req Request) (dashsdk.UsagePanel, error)
}

// Registry maps provider ids to their implementation.
type Registry struct {
	providers map[dashsdk.ProviderID]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[dashsdk.ProviderID]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.ID()] = p
	}
	return r
}

// DefaultRegistry talks to the public endpoints of every supported
// provider.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&MiniMax{},
		&OpenAI{BaseURL: DefaultOpenAIURL},
		&Gemini{BaseURL: DefaultGeminiURL},
		&GLM{},
	)
}

func (r *Registry) Get(id dashsdk.ProviderID) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}
