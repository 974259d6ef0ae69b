package workload

import (
	"gopkg.in/yaml.v3"

	"github.com/canonical/livepatch-ops/internal/model"
)

// Pebble layer constants for the livepatch service.
const (
	serviceName    = "livepatch"
	serverCommand  = "/usr/local/bin/livepatch-server"
	checkName      = "livepatch-check"
	checkPeriod    = "1m"
	healthCheckURL = "http://localhost:8081/debug/status"
)

// Layer is a pebble configuration layer for the livepatch service.
type Layer struct {
	Summary     string             `yaml:"summary" json:"summary"`
	Description string             `yaml:"description" json:"description"`
	Services    map[string]Service `yaml:"services" json:"services"`
	Checks      map[string]Check   `yaml:"checks" json:"checks"`
}

// Service is one pebble service entry.
type Service struct {
	Override    string            `yaml:"override" json:"override"`
	Summary     string            `yaml:"summary" json:"summary"`
	Command     string            `yaml:"command" json:"command"`
	Startup     string            `yaml:"startup" json:"startup"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// Check is one pebble health check entry.
type Check struct {
	Override string    `yaml:"override" json:"override"`
	Period   string    `yaml:"period" json:"period"`
	HTTP     HTTPCheck `yaml:"http" json:"http"`
}

// HTTPCheck is the http probe of a pebble check.
type HTTPCheck struct {
	URL string `yaml:"url" json:"url"`
}

// NewLayer builds the livepatch service layer around the given
// environment. The service merges over lower layers so repeated config
// changes accumulate, while the health check replaces any previous
// definition outright.
func NewLayer(env map[string]string) Layer {
	return Layer{
		Summary:     "Livepatch Service",
		Description: "Pebble config layer for livepatch",
		Services: map[string]Service{
			serviceName: {
				Override:    "merge",
				Summary:     "Livepatch Service",
				Command:     serverCommand,
				Startup:     "disabled",
				Environment: env,
			},
		},
		Checks: map[string]Check{
			checkName: {
				Override: "replace",
				Period:   checkPeriod,
				HTTP:     HTTPCheck{URL: healthCheckURL},
			},
		},
	}
}

// Render marshals the layer to YAML.
func (l Layer) Render() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to render pebble layer", err)
	}
	return data, nil
}
