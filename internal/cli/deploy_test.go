package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/livepatch-ops/internal/config"
	"github.com/canonical/livepatch-ops/internal/model"
)

const deployMetadata = `name: canonical-livepatch-server-k8s
summary: Canonical Livepatch on-prem server.
resources:
  livepatch-server-image:
    type: oci-image
  livepatch-schema-upgrade-tool-image:
    type: oci-image
  livepatch-onprem-image:
    type: oci-image
`

// writeDeployFixture lays out a charm dir plus a config file pointing at
// it, so the deploy command can resolve metadata without a real charm.
func writeDeployFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	charmDir := filepath.Join(dir, "charm")
	require.NoError(t, os.Mkdir(charmDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(charmDir, "metadata.yaml"), []byte(deployMetadata), 0o644))

	cfgPath := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, os.WriteFile(
		cfgPath, []byte(`{"charmDir": "`+charmDir+`"}`), 0o644))
	return cfgPath
}

// stubDeployPhases replaces the phase seams with recorders and restores
// them when the test finishes. A non-nil packErr makes the pack phase
// fail.
func stubDeployPhases(t *testing.T, calls *[]string, packErr error) {
	t.Helper()
	origPack, origPush := packCharm, pushAllImages
	origDeploy, origWait := deployCharm, waitForActive
	t.Cleanup(func() {
		packCharm, pushAllImages = origPack, origPush
		deployCharm, waitForActive = origDeploy, origWait
	})

	packCharm = func(_ context.Context, dir string, _ bool) (string, error) {
		*calls = append(*calls, "pack")
		if packErr != nil {
			return "", packErr
		}
		return filepath.Join(dir, "canonical-livepatch-server-k8s.charm"), nil
	}
	pushAllImages = func(context.Context, *config.Config, bool) ([]pushResult, error) {
		*calls = append(*calls, "push")
		return []pushResult{{Name: "livepatch", Ref: "localhost:32000/livepatch:1.0"}}, nil
	}
	deployCharm = func(_ context.Context, plan model.DeployPlan) error {
		*calls = append(*calls, "deploy")
		assert.Equal(t, "canonical-livepatch-server-k8s", plan.Application)
		assert.NotEmpty(t, plan.ArtifactPath)
		return nil
	}
	waitForActive = func(context.Context, string, string, time.Duration) error {
		*calls = append(*calls, "wait")
		return nil
	}
}

func TestRunDeploy_PhaseOrder(t *testing.T) {
	cfgPath := writeDeployFixture(t)

	var calls []string
	stubDeployPhases(t, &calls, nil)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "deploy"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []string{"pack", "push", "deploy"}, calls)
}

func TestRunDeploy_WaitRunsAfterDeploy(t *testing.T) {
	cfgPath := writeDeployFixture(t)

	var calls []string
	stubDeployPhases(t, &calls, nil)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "deploy", "--wait"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, []string{"pack", "push", "deploy", "wait"}, calls)
}

func TestRunDeploy_PackFailureStopsFlow(t *testing.T) {
	cfgPath := writeDeployFixture(t)

	packErr := model.NewCLIError(model.ExitCharmError, "charmcraft pack failed")
	var calls []string
	stubDeployPhases(t, &calls, packErr)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "deploy"})
	err := cmd.Execute()

	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitCharmError, cliErr.Code)
	assert.Equal(t, []string{"pack"}, calls)
}
