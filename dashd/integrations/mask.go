package integrations

import (
	"strings"

	"github.com/openclaw/dashboard/dashsdk"
)

// Mask redacts a secret, keeping the first and last four characters
// (runes, not bytes) of long values.
func Mask(secret string) string {
	r := []rune(secret)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 8:
		return strings.Repeat("*", len(r))
	default:
		return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
	}
}

// View converts a document into its public, redacted form.
func View(doc Document) dashsdk.ProvidersResponse {
	resp := dashsdk.ProvidersResponse{
		Version:   doc.Version,
		Providers: make([]dashsdk.ProviderView, 0, len(Schemas)),
	}
	for _, s := range Schemas {
		cfg := doc.Provider(s.ID)
		view := dashsdk.ProviderView{
			ID:      s.ID,
			Title:   s.Title,
			Enabled: cfg.Enabled(),
			Fields:  map[string]any{},
		}
		for _, f := range s.Fields {
			switch {
			case f.Name == FieldEnabled:
			case f.Secret:
				raw := cfg.String(f.Name)
				view.APIKeyMasked = Mask(raw)
				view.HasAPIKey = raw != ""
			default:
				view.Fields[f.Name] = cfg[f.Name]
			}
		}
		resp.Providers = append(resp.Providers, view)
	}
	return resp
}
