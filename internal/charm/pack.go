package charm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/canonical/livepatch-ops/internal/model"
)

// RemoveArtifacts deletes any existing .charm files in the charm directory
// and returns their paths. Packing always starts clean so the artifact
// discovery after charmcraft cannot pick up a stale build.
func RemoveArtifacts(dir string) ([]string, error) {
	stale, err := filepath.Glob(filepath.Join(dir, "*.charm"))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitCharmError, "failed to list charm artifacts", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return nil, model.WrapCLIError(model.ExitCharmError,
				fmt.Sprintf("failed to remove stale charm artifact %q", path), err)
		}
	}
	return stale, nil
}

// Pack packages the charm source directory with charmcraft and returns
// the path of the produced .charm artifact. destructive passes
// --destructive-mode, which builds on the host instead of inside a
// charmcraft-managed container and therefore needs matching host
// privileges (the historical packaging target ran under sudo for this).
func Pack(ctx context.Context, dir string, destructive bool) (string, error) {
	if _, err := RemoveArtifacts(dir); err != nil {
		return "", err
	}

	args := []string{"pack"}
	if destructive {
		args = append(args, "--destructive-mode")
	}

	cmd := exec.CommandContext(ctx, "charmcraft", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", model.WrapCLIError(model.ExitCharmError,
			fmt.Sprintf("charmcraft pack failed: %s", strings.TrimSpace(string(output))), err)
	}

	return findArtifact(dir)
}

// findArtifact locates the single .charm file charmcraft produced.
// Zero or multiple artifacts mean the pack cannot be deployed
// unambiguously, so both are errors.
func findArtifact(dir string) (string, error) {
	artifacts, err := filepath.Glob(filepath.Join(dir, "*.charm"))
	if err != nil {
		return "", model.WrapCLIError(model.ExitCharmError, "failed to list charm artifacts", err)
	}
	switch len(artifacts) {
	case 0:
		return "", model.NewCLIError(model.ExitCharmError,
			fmt.Sprintf("charmcraft pack produced no .charm artifact in %q", dir))
	case 1:
		return artifacts[0], nil
	default:
		sort.Strings(artifacts)
		return "", model.NewCLIError(model.ExitCharmError,
			fmt.Sprintf("multiple charm artifacts in %q: %s", dir, strings.Join(artifacts, ", ")))
	}
}
