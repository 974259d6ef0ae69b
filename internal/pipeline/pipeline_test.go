package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/livepatch-ops/internal/model"
)

// TestRun_FailFast verifies the core ordering property: steps run in the
// declared order and the first failure prevents every later step.
func TestRun_FailFast(t *testing.T) {
	dir := t.TempDir()
	marker := func(name string) string { return filepath.Join(dir, name) }

	steps := []model.PipelineStep{
		{Name: "lint", Cmd: "sh", Args: []string{"-c", "touch " + marker("lint")}},
		{Name: "test", Cmd: "sh", Args: []string{"-c", "touch " + marker("test") + " && exit 2"}},
		{Name: "report", Cmd: "sh", Args: []string{"-c", "touch " + marker("report")}},
	}

	var out, errOut strings.Builder
	r := &Runner{Stdout: &out, Stderr: &errOut}
	err := r.Run(context.Background(), steps)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPipelineError, cliErr.Code)
	assert.Contains(t, err.Error(), `step "test" failed with exit status 2`)

	assert.FileExists(t, marker("lint"), "steps before the failure run")
	assert.FileExists(t, marker("test"))
	assert.NoFileExists(t, marker("report"), "steps after the failure must not run")
}

func TestRun_AllSucceed(t *testing.T) {
	var out strings.Builder
	r := &Runner{Stdout: &out, Stderr: &out}
	err := r.Run(context.Background(), []model.PipelineStep{
		{Name: "lint", Cmd: "sh", Args: []string{"-c", "echo lint-ok"}},
		{Name: "report", Cmd: "sh", Args: []string{"-c", "echo report-ok"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "lint-ok")
	assert.Contains(t, out.String(), "report-ok")
}

func TestRun_MissingCommand(t *testing.T) {
	r := &Runner{Stdout: new(strings.Builder), Stderr: new(strings.Builder)}
	err := r.Run(context.Background(), []model.PipelineStep{
		{Name: "lint", Cmd: "definitely-not-a-command-xyz"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "lint" could not be started`)
}

// TestActivateEnv covers the conditional activation contract: activate
// only when no environment is active and the directory exists.
func TestActivateEnv(t *testing.T) {
	t.Run("activates when venv exists and none active", func(t *testing.T) {
		venv := filepath.Join(t.TempDir(), "venv")
		require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))

		environ, activated := ActivateEnv([]string{"PATH=/usr/bin"}, venv)
		assert.True(t, activated)

		got, ok := lookupEnv(environ, "VIRTUAL_ENV")
		require.True(t, ok)
		assert.Equal(t, venv, got)

		path, _ := lookupEnv(environ, "PATH")
		assert.Equal(t, filepath.Join(venv, "bin")+string(os.PathListSeparator)+"/usr/bin", path)
	})

	t.Run("missing venv dir means no activation", func(t *testing.T) {
		in := []string{"PATH=/usr/bin"}
		environ, activated := ActivateEnv(in, filepath.Join(t.TempDir(), "venv"))
		assert.False(t, activated)
		assert.Equal(t, in, environ)
	})

	t.Run("already active environment is untouched", func(t *testing.T) {
		venv := filepath.Join(t.TempDir(), "venv")
		require.NoError(t, os.MkdirAll(venv, 0o755))

		in := []string{"PATH=/usr/bin", "VIRTUAL_ENV=/elsewhere"}
		environ, activated := ActivateEnv(in, venv)
		assert.False(t, activated)

		got, _ := lookupEnv(environ, "VIRTUAL_ENV")
		assert.Equal(t, "/elsewhere", got)
	})
}

func TestSetSearchPath(t *testing.T) {
	sep := string(os.PathListSeparator)

	t.Run("combines dirs with existing value", func(t *testing.T) {
		environ := SetSearchPath([]string{"PYTHONPATH=/opt/extra"}, []string{"lib", "src"})
		got, _ := lookupEnv(environ, "PYTHONPATH")
		assert.Equal(t, "lib"+sep+"src"+sep+"/opt/extra", got)
	})

	t.Run("no pre-existing value", func(t *testing.T) {
		environ := SetSearchPath([]string{"PATH=/usr/bin"}, []string{"lib", "src"})
		got, _ := lookupEnv(environ, "PYTHONPATH")
		assert.Equal(t, "lib"+sep+"src", got)
	})
}
