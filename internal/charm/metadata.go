// Package charm handles the charm side of the deployment workflow:
// reading the charm's metadata.yaml and packing the charm source
// directory into a deployable .charm artifact with charmcraft.
package charm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/canonical/livepatch-ops/internal/model"
)

// Resource is a charm resource declaration from metadata.yaml. For this
// charm all resources are OCI images attached at deploy time.
type Resource struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// Metadata is the subset of metadata.yaml the deploy workflow needs:
// the application name and the declared resources.
type Metadata struct {
	Name        string              `yaml:"name"`
	Summary     string              `yaml:"summary,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Resources   map[string]Resource `yaml:"resources,omitempty"`
}

// LoadMetadata reads and parses metadata.yaml from the charm directory.
func LoadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, "metadata.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitCharmError,
			fmt.Sprintf("failed to read charm metadata at %q", path), err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, model.WrapCLIError(model.ExitCharmError,
			fmt.Sprintf("failed to parse charm metadata at %q", path), err)
	}
	if meta.Name == "" {
		return nil, model.NewCLIError(model.ExitCharmError,
			fmt.Sprintf("charm metadata at %q has no name", path))
	}
	return &meta, nil
}

// MissingResources returns the resource names in want that the charm does
// not declare, in sorted order. Deploy uses this to fail before invoking
// juju with a resource the charm would reject.
func (m *Metadata) MissingResources(want map[string]string) []string {
	var missing []string
	for name := range want {
		if _, ok := m.Resources[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
