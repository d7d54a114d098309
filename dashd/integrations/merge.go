package integrations

// MergePolicy applies a partial patch on top of a saved provider config.
//
// Non-secret fields take the patch value whenever the key is present.
// Secret fields resolve in this order: an explicit clear flag empties the
// secret, otherwise a non-blank patch value replaces it, otherwise the saved
// secret is kept. A client that round-trips the redacted view therefore
// never wipes a credential by accident.
type MergePolicy struct {
	// ClearFlag is the patch key that requests secret removal. The same key
	// prefixed with "__" is also honored.
	ClearFlag string
}

// DefaultMergePolicy is used by the store and by draft validation.
var DefaultMergePolicy = MergePolicy{ClearFlag: "clear_api_key"}

func (p MergePolicy) Apply(s Schema, saved Config, patch map[string]any) Config {
	out := normalize(s, saved)
	clearSecrets := p.clearRequested(patch)
	for _, f := range s.Fields {
		raw, present := patch[f.Name]
		if f.Secret {
			out[f.Name] = mergeSecret(out.String(f.Name), raw, present, clearSecrets)
			continue
		}
		if !present {
			continue
		}
		if v, ok := coerce(f.Kind, raw); ok {
			out[f.Name] = v
		}
	}
	return out
}

func (p MergePolicy) clearRequested(patch map[string]any) bool {
	if p.ClearFlag == "" {
		return false
	}
	for _, key := range []string{p.ClearFlag, "__" + p.ClearFlag} {
		if b, _ := toBool(patch[key]); b {
			return true
		}
	}
	return false
}

func mergeSecret(existing string, raw any, present, clearSecret bool) string {
	if clearSecret {
		return ""
	}
	if present {
		if v, ok := coerce(KindString, raw); ok && v.(string) != "" {
			return v.(string)
		}
	}
	return existing
}
