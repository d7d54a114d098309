package integrations

import (
	"github.com/openclaw/dashboard/dashsdk"
)

// Field names shared by every provider.
const (
	FieldEnabled = "enabled"
	FieldAPIKey  = "api_key"
)

type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
)

// Field describes one persisted provider setting.
type Field struct {
	Name  string
	Label string
	Kind  FieldKind
	// Secret fields are redacted on read and survive empty updates.
	Secret bool
	// Required fields must be non-blank before an upstream call is made.
	Required bool
	Default  any
}

// Schema is the closed description of one provider's settings.
type Schema struct {
	ID     dashsdk.ProviderID
	Title  string
	Fields []Field
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns a config holding every field at its default value.
func (s Schema) Defaults() Config {
	cfg := make(Config, len(s.Fields))
	for _, f := range s.Fields {
		cfg[f.Name] = f.Default
	}
	return cfg
}

// Missing returns the required fields that are blank in cfg.
func (s Schema) Missing(cfg Config) []Field {
	var missing []Field
	for _, f := range s.Fields {
		if f.Required && cfg.String(f.Name) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func enabledField() Field {
	return Field{Name: FieldEnabled, Label: "Enabled", Kind: KindBool, Default: false}
}

func apiKeyField() Field {
	return Field{Name: FieldAPIKey, Label: "API Key", Kind: KindString, Secret: true, Required: true, Default: ""}
}

// DefaultGLMBaseURL is the public Zhipu endpoint.
const DefaultGLMBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// Schemas lists the supported providers in panel order.
var Schemas = []Schema{
	{
		ID:    dashsdk.ProviderMiniMax,
		Title: "MiniMax",
		Fields: []Field{
			enabledField(),
			apiKeyField(),
			{Name: "group_id", Label: "Group ID", Kind: KindString, Default: ""},
			{Name: "quota_url", Label: "Quota URL", Kind: KindString, Required: true, Default: ""},
			{Name: "usage_is_remaining", Label: "Usage Is Remaining", Kind: KindBool, Default: false},
		},
	},
	{
		ID:    dashsdk.ProviderOpenAI,
		Title: "OpenAI",
		Fields: []Field{
			enabledField(),
			apiKeyField(),
			{Name: "project_id", Label: "Project ID", Kind: KindString, Default: ""},
			{Name: "organization_id", Label: "Organization ID", Kind: KindString, Default: ""},
		},
	},
	{
		ID:    dashsdk.ProviderGemini,
		Title: "Gemini",
		Fields: []Field{
			enabledField(),
			apiKeyField(),
			{Name: "project_id", Label: "Project ID", Kind: KindString, Default: ""},
		},
	},
	{
		ID:    dashsdk.ProviderGLM,
		Title: "GLM",
		Fields: []Field{
			enabledField(),
			apiKeyField(),
			{Name: "base_url", Label: "Base URL", Kind: KindString, Default: DefaultGLMBaseURL},
		},
	},
}

// Lookup returns the schema for id.
func Lookup(id dashsdk.ProviderID) (Schema, bool) {
	for _, s := range Schemas {
		if s.ID == id {
			return s, true
		}
	}
	return Schema{}, false
}
