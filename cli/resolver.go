package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// resolve is a [kong.ConfigurationLoader] that reads YAML config files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve, "/path/to/config.yaml")
//
// The YAML document is converted as follows:
//   - The document must be a mapping; anything else is an empty config
//   - Flag names with hyphens (e.g., "log-level") may use underscores
//     in the config file (e.g., "log_level")
//   - Nested mappings join their keys with underscores, so a "log" mapping
//     with key "level" configures --log-level
//   - Sequences configure repeatable flags such as --path
//   - Numbers are passed to Kong as strings
//
// Example config file:
//
//	log_level: debug
//	log:
//	  format: json
//	  pretty: true
//	path:
//	  - ./templates
//
// Command-line flags override config file values.
func resolve(r io.Reader) (kong.Resolver, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc map[string]any

	if err := yaml.Unmarshal(b, &doc); err != nil {
		// malformed config is an empty config
		return config{}, nil //nolint:nilerr
	}

	cfg := config{}
	cfg.flatten("", doc)

	return cfg, nil
}

// config implements [kong.Resolver] for YAML configs.
type config map[string]any

func (r config) flatten(prefix string, m map[string]any) {
	for key, value := range m {
		key = strings.ReplaceAll(key, "-", "_")
		if prefix != "" {
			key = prefix + "_" + key
		}

		if nested, ok := value.(map[string]any); ok {
			r.flatten(key, nested)

			continue
		}

		r[key] = kongValue(value)
	}
}

// Validate implements [kong.Resolver].
func (r config) Validate(*kong.Application) error {
	return nil
}

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	// Not found returns nil to let Kong use defaults.
	return r[strings.ReplaceAll(flag.Name, "-", "_")], nil
}

// kongValue converts a decoded YAML value to the form Kong expects.
func kongValue(v any) any {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		list := make([]any, len(x))
		for i, e := range x {
			list[i] = kongValue(e)
		}

		return list
	}

	return v
}
