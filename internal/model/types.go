// Package model defines the domain types for the livepatch-ops CLI.
//
// The tool orchestrates external systems (the Docker daemon, a local
// container registry, charmcraft, juju, the contracts service) and the
// types here describe the artifacts that flow between those systems:
// container images, charm resources, and pipeline steps. All state lives
// in those external systems; nothing here is persisted by the tool itself.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ImageSpec describes one container image the tool builds and publishes.
type ImageSpec struct {
	// Name is the bare image name, e.g. "livepatch-schema-tool".
	Name string `json:"name"`

	// Tag is the image tag. The release process pins all three livepatch
	// images to a single tag, so there is exactly one per spec.
	Tag string `json:"tag"`

	// Context is the Docker build context directory, relative to the
	// working directory unless absolute.
	Context string `json:"context"`

	// Dockerfile optionally overrides the Dockerfile path within the
	// context. Empty means the Docker default ("Dockerfile").
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Ref returns the plain image reference, e.g. "livepatch:1.0".
func (s ImageSpec) Ref() string {
	return s.Name + ":" + s.Tag
}

// LocalRef returns the image reference retagged under the given registry,
// e.g. "localhost:32000/livepatch:1.0". This is the name the image is
// pushed and deployed as.
func (s ImageSpec) LocalRef(registry string) string {
	return registry + "/" + s.Ref()
}

// imageNameRE matches valid image name components: lowercase alphanumerics
// separated by single ".", "_", "-" or "/" characters. This is a strict
// subset of the OCI distribution grammar.
var imageNameRE = regexp.MustCompile(`^[a-z0-9]+(?:[._/-][a-z0-9]+)*$`)

// Validate checks that the image has the fields every build needs
// before one is attempted.
func (s ImageSpec) Validate() error {
	if !imageNameRE.MatchString(s.Name) {
		return fmt.Errorf("invalid image name: %q", s.Name)
	}
	if s.Tag == "" {
		return fmt.Errorf("image %q has an empty tag", s.Name)
	}
	if s.Context == "" {
		return fmt.Errorf("image %q has no build context", s.Name)
	}
	return nil
}

// DeployPlan is the fully resolved input to a charm deployment: the packed
// artifact, the application name, and the charm resources to attach.
type DeployPlan struct {
	// ArtifactPath is the packed .charm file produced by the pack step.
	ArtifactPath string `json:"artifactPath"`

	// Application is the juju application name, taken from the charm's
	// metadata.yaml name field.
	Application string `json:"application"`

	// Model is the juju model to deploy into. Empty means the current model.
	Model string `json:"model,omitempty"`

	// Resources maps charm resource names to image references. Two of
	// these point at freshly pushed local-registry images; the onprem
	// image is assumed already present in its remote registry.
	Resources map[string]string `json:"resources"`
}

// PipelineStep is one command in a fail-fast sequential pipeline
// (the lint/test/coverage steps of the check command).
type PipelineStep struct {
	// Name identifies the step in output and error messages.
	Name string `json:"name"`

	// Cmd is the executable to run.
	Cmd string `json:"cmd"`

	// Args are the command arguments.
	Args []string `json:"args,omitempty"`
}

// String renders the step as it would appear on a shell command line.
func (p PipelineStep) String() string {
	if len(p.Args) == 0 {
		return p.Cmd
	}
	return p.Cmd + " " + strings.Join(p.Args, " ")
}
