package usage

import (
	"os"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashsdk"
)

// Fallback fills unset config values from outside the config store.
type Fallback func(id dashsdk.ProviderID, cfg integrations.Config) integrations.Config

// MiniMaxEnvFallback fills blank MiniMax settings from the MINIMAX_*
// environment variables. usage_is_remaining is true if either source says
// so. A nil getenv reads the process environment.
func MiniMaxEnvFallback(getenv func(string) string) Fallback {
	if getenv == nil {
		getenv = os.Getenv
	}
	return func(id dashsdk.ProviderID, cfg integrations.Config) integrations.Config {
		if id != dashsdk.ProviderMiniMax {
			return cfg
		}
		out := cfg.Clone()
		for field, env := range map[string]string{
			integrations.FieldAPIKey: "MINIMAX_API_KEY",
			"group_id":               "MINIMAX_GROUP_ID",
			"quota_url":              "MINIMAX_QUOTA_URL",
		} {
			if out.String(field) == "" {
				out[field] = getenv(env)
			}
		}
		out["usage_is_remaining"] = out.Bool("usage_is_remaining") || getenv("MINIMAX_USAGE_IS_REMAINING") == "1"
		return out
	}
}
