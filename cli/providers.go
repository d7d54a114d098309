package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"cdr.dev/slog/v3"
	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
)

func (r *RootCmd) providers() *serpent.Command {
	return &serpent.Command{
		Use:     "providers",
		Aliases: []string{"provider", "models"},
		Short:   "Show, change and test model provider settings",
		Children: []*serpent.Command{
			r.providersShow(),
			r.providersSet(),
			r.providersValidate(),
		},
	}
}

func providersTable(res dashsdk.ProvidersResponse) table.Writer {
	tw := newTable(table.Row{"ID", "Title", "Enabled", "API Key", "Settings"})
	for _, p := range res.Providers {
		keys := make([]string, 0, len(p.Fields))
		for k := range p.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		settings := make([]string, 0, len(keys))
		for _, k := range keys {
			settings = append(settings, fmt.Sprintf("%s=%v", k, p.Fields[k]))
		}
		tw.AppendRow(table.Row{p.ID, p.Title, p.Enabled, orDash(p.APIKeyMasked), strings.Join(settings, "\n")})
	}
	return tw
}

func (r *RootCmd) providersShow() *serpent.Command {
	var out outputFlag
	return &serpent.Command{
		Use:        "show",
		Short:      "Show saved provider settings with secrets masked",
		Middleware: serpent.RequireNArgs(0),
		Options:    serpent.OptionSet{out.option()},
		Handler: func(inv *serpent.Invocation) error {
			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			doc, err := r.settingsStore(logger).Load(inv.Context())
			if err != nil {
				return err
			}
			view := integrations.View(doc)
			return out.write(inv.Stdout, view, func() table.Writer { return providersTable(view) })
		},
	}
}

// parseSetFlags turns key=value pairs into a provider patch. "true" and
// "false" become booleans.
func parseSetFlags(pairs []string) (map[string]any, error) {
	patch := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, xerrors.Errorf("invalid --set %q, expected key=value", pair)
		}
		switch strings.ToLower(value) {
		case "true":
			patch[key] = true
		case "false":
			patch[key] = false
		default:
			patch[key] = value
		}
	}
	return patch, nil
}

// readProvidersFile reads a YAML document of provider patches, either
// under a top-level "providers" key or as the top-level mapping itself.
func readProvidersFile(path string) (map[dashsdk.ProviderID]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", path, err)
	}
	var doc struct {
		Providers map[string]map[string]any `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Errorf("parse %s: %w", path, err)
	}
	raw := doc.Providers
	if raw == nil {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, xerrors.Errorf("parse %s: %w", path, err)
		}
	}
	patches := make(map[dashsdk.ProviderID]map[string]any, len(raw))
	for id, patch := range raw {
		patches[dashsdk.ProviderID(id)] = patch
	}
	return patches, nil
}

func (r *RootCmd) providersSet() *serpent.Command {
	var (
		out  outputFlag
		file string
		sets []string
	)
	return &serpent.Command{
		Use:   "set [provider]",
		Short: "Update provider settings from a YAML file or key=value pairs",
		Long: formatExamples(
			example{Description: "Apply a settings file", Command: "dashboard providers set --file providers.yaml"},
			example{Description: "Enable GLM with a key", Command: "dashboard providers set glm --set enabled=true --set api_key=..."},
			example{Description: "Forget a saved key", Command: "dashboard providers set openai --set " + dashsdk.ClearSecretKey + "=true"},
		),
		Middleware: serpent.RequireRangeArgs(0, 1),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:          "file",
				FlagShorthand: "f",
				Description:   "YAML file mapping provider ids to settings.",
				Value:         serpent.StringOf(&file),
			},
			{
				Flag:        "set",
				Description: "A key=value setting for the provider argument. Repeatable.",
				Value:       serpent.StringArrayOf(&sets),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			patches := map[dashsdk.ProviderID]map[string]any{}
			if file != "" {
				var err error
				patches, err = readProvidersFile(file)
				if err != nil {
					return err
				}
			}
			if len(sets) > 0 {
				if len(inv.Args) != 1 {
					return xerrors.New("--set needs a provider argument")
				}
				patch, err := parseSetFlags(sets)
				if err != nil {
					return err
				}
				id := dashsdk.ProviderID(inv.Args[0])
				if patches[id] == nil {
					patches[id] = map[string]any{}
				}
				for k, v := range patch {
					patches[id][k] = v
				}
			}
			if len(patches) == 0 {
				return xerrors.New("nothing to change, pass --file or a provider with --set")
			}

			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			doc, ignored, err := r.settingsStore(logger).Update(ctx, patches)
			if err != nil {
				return err
			}
			if len(ignored) > 0 {
				logger.Warn(ctx, "ignored unknown providers", slog.F("providers", ignored))
			}
			view := integrations.View(doc)
			return out.write(inv.Stdout, view, func() table.Writer { return providersTable(view) })
		},
	}
}

func (r *RootCmd) providersValidate() *serpent.Command {
	var (
		out  outputFlag
		sets []string
	)
	return &serpent.Command{
		Use:        "validate <provider>",
		Short:      "Try provider settings against the upstream without saving them",
		Long:       "The draft is the saved settings with any --set pairs applied on top.",
		Middleware: serpent.RequireNArgs(1),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:        "set",
				Description: "A key=value setting to try. Repeatable.",
				Value:       serpent.StringArrayOf(&sets),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			draft, err := parseSetFlags(sets)
			if err != nil {
				return err
			}
			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			agg := usage.New(usage.Options{
				Config:   r.settingsStore(logger),
				Fallback: usage.MiniMaxEnvFallback(inv.Environ.Get),
				Logger:   logger,
			})
			res, err := agg.ValidateDraft(ctx, dashsdk.ProviderID(inv.Args[0]), draft)
			if err != nil {
				return err
			}
			if out.format == formatJSON {
				if err := writeJSON(inv.Stdout, res); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintln(inv.Stdout, res.Message)
				if res.Panel != nil {
					_, _ = fmt.Fprintln(inv.Stdout, panelTable([]dashsdk.UsagePanel{*res.Panel}).Render())
				}
			}
			if !res.Success {
				return xerrors.Errorf("validation failed: %s", res.Message)
			}
			return nil
		},
	}
}
