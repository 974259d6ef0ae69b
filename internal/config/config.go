// Package config loads the livepatch-ops tool configuration.
//
// The configuration file is JSONC (JSON with comments), so raw file bytes
// are passed through github.com/tidwall/jsonc before parsing with the
// standard encoding/json library. Every field has a default mirroring the
// values the release Makefile historically hardcoded, so a missing config
// file yields a fully working setup for the standard layout.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/tidwall/jsonc"

	"github.com/canonical/livepatch-ops/internal/model"
)

// DefaultFileName is the config file looked up in the working directory
// when --config is not given.
const DefaultFileName = "livepatch-ops.jsonc"

// Charm resource names, fixed by the charm's metadata.yaml.
const (
	ServerImageResource     = "livepatch-server-image"
	SchemaToolImageResource = "livepatch-schema-upgrade-tool-image"
	OnpremImageResource     = "livepatch-onprem-image"
)

// CheckConfig configures the lint/test/coverage pipeline run by the
// check command.
type CheckConfig struct {
	// VenvDir is the isolated-environment directory. If it exists and no
	// environment is already active, its bin directory is prepended to
	// PATH before the pipeline runs.
	VenvDir string `json:"venvDir" default:"venv"`

	// SearchPath lists the directories combined into the module search
	// path exported to the pipeline, ahead of any pre-existing value.
	SearchPath []string `json:"searchPath"`

	// Lint, Test and Report are the three pipeline steps, run in that
	// order with fail-fast semantics. Extra CLI arguments are forwarded
	// to the Test step only.
	Lint   model.PipelineStep `json:"lint"`
	Test   model.PipelineStep `json:"test"`
	Report model.PipelineStep `json:"report"`
}

// ProxyConfig holds outbound proxy settings for the contracts client.
// Empty fields fall back to the JUJU_CHARM_*_PROXY environment variables.
type ProxyConfig struct {
	HTTP  string `json:"http,omitempty"`
	HTTPS string `json:"https,omitempty"`
	No    string `json:"no,omitempty"`
}

// Config is the full tool configuration.
type Config struct {
	// Registry is the local container registry images are retagged under
	// and pushed to.
	Registry string `json:"registry" default:"localhost:32000"`

	// Images are the container images built and pushed by the push
	// command, in build order.
	Images []model.ImageSpec `json:"images"`

	// CharmDir is the charm source directory charmcraft packs.
	CharmDir string `json:"charmDir" default:"./charms/operator-k8s"`

	// JujuModel is the model deployments target. Empty uses juju's
	// current model.
	JujuModel string `json:"jujuModel,omitempty"`

	// OnpremImage is the onprem image reference attached as a charm
	// resource. Unlike the other two resources it is not built or pushed
	// here; it is assumed present in its remote registry.
	OnpremImage string `json:"onpremImage" default:"ghcr.io/canonical/livepatch-onprem:latest"`

	// Resources overrides individual charm resource images. Unset entries
	// are derived from Registry, Images and OnpremImage.
	Resources map[string]string `json:"resources,omitempty"`

	// ContractsURL is the base URL of the contracts service used by the
	// resource-token command.
	ContractsURL string `json:"contractsUrl" default:"https://contracts.canonical.com"`

	// Proxy configures outbound proxies for contracts requests.
	Proxy ProxyConfig `json:"proxy"`

	// Check configures the lint/test/coverage pipeline.
	Check CheckConfig `json:"check"`
}

// Load reads the configuration from path. When explicit is false and the
// file does not exist, the built-in defaults are returned; an explicitly
// requested file that is missing or unreadable is a config error.
func Load(path string, explicit bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// jsonc.ToJSON strips comments and trailing commas in place,
		// producing bytes the standard JSON decoder accepts.
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config file %q", path), err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file: run on defaults.
	default:
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read config file %q", path), err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to apply config defaults", err)
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDerived populates the slice and step fields that the defaults
// library cannot express in struct tags.
func (c *Config) fillDerived() {
	if len(c.Images) == 0 {
		c.Images = DefaultImages()
	}
	if len(c.Check.SearchPath) == 0 {
		c.Check.SearchPath = []string{"lib", "src"}
	}
	if c.Check.Lint.Cmd == "" {
		c.Check.Lint = model.PipelineStep{Name: "lint", Cmd: "flake8"}
	}
	if c.Check.Test.Cmd == "" {
		c.Check.Test = model.PipelineStep{
			Name: "test",
			Cmd:  "coverage",
			Args: []string{"run", "--branch", "--source=src", "-m", "pytest"},
		}
	}
	if c.Check.Report.Cmd == "" {
		c.Check.Report = model.PipelineStep{Name: "report", Cmd: "coverage", Args: []string{"report", "-m"}}
	}
}

// DefaultImages returns the three livepatch images in build order, matching
// the historical Makefile targets.
func DefaultImages() []model.ImageSpec {
	return []model.ImageSpec{
		{Name: "livepatch", Tag: "1.0", Context: "."},
		{Name: "livepatch-schema-tool", Tag: "1.0", Context: "./schema-tool"},
		{Name: "livepatch-admin-tool", Tag: "1.0", Context: "./admin-tool"},
	}
}

// Validate checks the configuration for values every command depends on.
func (c *Config) Validate() error {
	if c.Registry == "" {
		return model.NewCLIError(model.ExitConfigError, "registry must not be empty")
	}
	if len(c.Images) == 0 {
		return model.NewCLIError(model.ExitConfigError, "at least one image must be configured")
	}
	for _, img := range c.Images {
		if err := img.Validate(); err != nil {
			return model.WrapCLIError(model.ExitConfigError, "invalid image config", err)
		}
	}
	return nil
}

// Image returns the configured spec for the given image name.
func (c *Config) Image(name string) (model.ImageSpec, bool) {
	for _, img := range c.Images {
		if img.Name == name {
			return img, true
		}
	}
	return model.ImageSpec{}, false
}

// ResourceMap resolves the charm resource name → image reference mapping
// used at deploy time. The server and schema-tool resources point at the
// freshly pushed local-registry references; the onprem resource keeps its
// remote reference. Entries in c.Resources override the derived values.
func (c *Config) ResourceMap() map[string]string {
	res := map[string]string{
		OnpremImageResource: c.OnpremImage,
	}
	if img, ok := c.Image("livepatch"); ok {
		res[ServerImageResource] = img.LocalRef(c.Registry)
	}
	if img, ok := c.Image("livepatch-schema-tool"); ok {
		res[SchemaToolImageResource] = img.LocalRef(c.Registry)
	}
	for k, v := range c.Resources {
		res[k] = v
	}
	return res
}
