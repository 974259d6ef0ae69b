// Package workload renders the livepatch server's runtime configuration:
// the LP_* environment mapped from charm config, and the pebble service
// layer that runs the server under that environment.
package workload

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/canonical/livepatch-ops/internal/model"
)

// ServerAddress is the listen address injected into every rendered
// environment; the health check below probes the same port.
const ServerAddress = ":8081"

// envPrefix namespaces every mapped config key.
const envPrefix = "LP_"

// LoadCharmConfig reads a charm config YAML file into a flat key/value
// map. Nested maps are not expected: the charm's config.yaml uses dotted
// keys ("patch-storage.type") at the top level.
func LoadCharmConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read charm config %q", path), err)
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to parse charm config %q", path), err)
	}
	return cfg, nil
}

// MapConfigToEnv maps charm config keys to LP_* environment variables:
// "patch-storage.type" becomes "LP_PATCH_STORAGE_TYPE". The leader flag is
// always present as LP_SERVER_IS_LEADER, extra entries are merged last
// (overriding mapped keys), and entries with empty values are dropped so
// the server's own defaults apply.
func MapConfigToEnv(cfg map[string]any, leader bool, extra map[string]string) map[string]string {
	env := make(map[string]string, len(cfg)+len(extra)+1)
	for key, value := range cfg {
		env[EnvKey(key)] = fmt.Sprint(value)
	}
	env[envPrefix+"SERVER_IS_LEADER"] = fmt.Sprint(leader)
	for key, value := range extra {
		env[key] = value
	}

	for key, value := range env {
		if value == "" {
			delete(env, key)
		}
	}
	return env
}

// EnvKey converts a charm config key to its LP_* environment variable
// name: dots and hyphens become underscores, the result is uppercased.
func EnvKey(configKey string) string {
	key := strings.NewReplacer("-", "_", ".", "_").Replace(configKey)
	return envPrefix + strings.ToUpper(key)
}

// SortedKeys returns the environment keys in sorted order, for stable
// text output.
func SortedKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
