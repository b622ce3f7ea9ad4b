package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// yamlConfig is a kong.ConfigurationLoader for YAML files. Top level keys are
// flag names, with either dashes or underscores.
func yamlConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	err := yaml.NewDecoder(r).Decode(&values)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (interface{}, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			val, ok := values[key]
			if ok {
				return configValue(val), nil
			}
		}
		return nil, nil
	}), nil
}

// configValue flattens a YAML value to the string form kong parses on the
// command line.
func configValue(val interface{}) string {
	switch val := val.(type) {
	case []interface{}:
		items := make([]string, len(val))
		for i := range val {
			items[i] = configValue(val[i])
		}
		return strings.Join(items, ",")
	case map[string]interface{}:
		items := make([]string, 0, len(val))
		for k, v := range val {
			items = append(items, k+"="+configValue(v))
		}
		sort.Strings(items)
		return strings.Join(items, ";")
	}
	return fmt.Sprint(val)
}

// configPaths returns the default config file when one exists in the XDG
// config directories.
func configPaths() []string {
	p, err := xdg.SearchConfigFile(filepath.Join("reflines", "config.yaml"))
	if err != nil {
		return nil
	}
	return []string{p}
}
