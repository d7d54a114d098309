package integrations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/xerrors"
)

// Config holds one provider's settings keyed by field name. Values are
// strings or bools after normalization.
type Config map[string]any

func (c Config) String(name string) string {
	switch v := c[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (c Config) Bool(name string) bool {
	b, _ := toBool(c[name])
	return b
}

func (c Config) Enabled() bool {
	return c.Bool(FieldEnabled)
}

func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Decode copies the config into a struct tagged with `mapstructure`.
func (c Config) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return xerrors.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(c)); err != nil {
		return xerrors.Errorf("decode provider config: %w", err)
	}
	return nil
}

// coerce converts v to the representation for kind. ok is false when the
// value cannot be interpreted.
func coerce(kind FieldKind, v any) (any, bool) {
	switch kind {
	case KindBool:
		return toBool(v)
	default:
		switch s := v.(type) {
		case nil:
			return "", true
		case string:
			return strings.TrimSpace(s), true
		case bool, float64, int, int64:
			return fmt.Sprint(s), true
		default:
			return nil, false
		}
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case nil:
		return false, true
	default:
		return false, false
	}
}

// normalize overlays stored values on the schema defaults. Unknown keys
// and values of the wrong shape are dropped.
func normalize(s Schema, stored map[string]any) Config {
	cfg := s.Defaults()
	for _, f := range s.Fields {
		raw, ok := stored[f.Name]
		if !ok {
			continue
		}
		if v, ok := coerce(f.Kind, raw); ok {
			cfg[f.Name] = v
		}
	}
	return cfg
}
