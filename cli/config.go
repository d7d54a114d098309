package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/coder/serpent"
)

// applyConfigFile sets options from a YAML file, matched by each option's
// YAML key. Values given as flags or environment variables win over the
// file.
func applyConfigFile(inv *serpent.Invocation, path string, opts serpent.OptionSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("read config %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return xerrors.Errorf("parse config %s: %w", path, err)
	}

	known := make(map[string]struct{}, len(opts))
	flags := inv.ParsedFlags()
	for _, opt := range opts {
		if opt.YAML == "" {
			continue
		}
		known[opt.YAML] = struct{}{}
		raw, ok := doc[opt.YAML]
		if !ok || raw == nil {
			continue
		}
		if opt.Flag != "" && flags != nil {
			if f := flags.Lookup(opt.Flag); f != nil && f.Changed {
				continue
			}
		}
		if opt.Env != "" && inv.Environ.Get(opt.Env) != "" {
			continue
		}
		for _, v := range yamlValues(raw) {
			if err := opt.Value.Set(v); err != nil {
				return xerrors.Errorf("config %s: %s: %w", path, opt.YAML, err)
			}
		}
	}
	for key := range doc {
		if _, ok := known[key]; !ok {
			return xerrors.Errorf("config %s: unknown key %q", path, key)
		}
	}
	return nil
}

// yamlValues flattens a scalar or a list of scalars into option strings.
func yamlValues(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprint(raw)}
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, strings.TrimSpace(fmt.Sprint(v)))
	}
	return out
}
