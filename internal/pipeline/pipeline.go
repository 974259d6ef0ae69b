// Package pipeline runs the lint/test/coverage sequence behind the check
// command: a strictly sequential, fail-fast chain of child processes with
// the isolated-environment and module-search-path setup the historical
// test runner script performed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/canonical/livepatch-ops/internal/model"
)

// Environment variable names the pipeline reads and sets.
const (
	virtualEnvVar = "VIRTUAL_ENV"
	pathVar       = "PATH"
	searchPathVar = "PYTHONPATH"
)

// Runner executes pipeline steps. Output writers default to the process's
// own stdout/stderr; tests substitute buffers.
type Runner struct {
	// Dir is the working directory for every step. Empty means the
	// current directory.
	Dir string

	// Env is the environment for every step. Nil means os.Environ().
	Env []string

	// Stdout and Stderr receive the steps' output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the steps in order and stops at the first failure,
// returning a pipeline error naming the failed step and carrying its exit
// status. Remaining steps are not attempted.
func (r *Runner) Run(ctx context.Context, steps []model.PipelineStep) error {
	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	for _, step := range steps {
		cmd := exec.CommandContext(ctx, step.Cmd, step.Args...)
		cmd.Dir = r.Dir
		cmd.Env = r.Env
		cmd.Stdout = stdout
		cmd.Stderr = stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return model.WrapCLIError(model.ExitPipelineError,
					fmt.Sprintf("step %q failed with exit status %d", step.Name, exitErr.ExitCode()), err)
			}
			return model.WrapCLIError(model.ExitPipelineError,
				fmt.Sprintf("step %q could not be started", step.Name), err)
		}
	}
	return nil
}

// lookupEnv finds key in a KEY=value environment slice.
func lookupEnv(environ []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return environ[i][len(prefix):], true
		}
	}
	return "", false
}

// setEnv replaces or appends key in a KEY=value environment slice.
func setEnv(environ []string, key, value string) []string {
	prefix := key + "="
	for i, entry := range environ {
		if strings.HasPrefix(entry, prefix) {
			environ[i] = prefix + value
			return environ
		}
	}
	return append(environ, prefix+value)
}

// ActivateEnv conditionally activates the isolated environment at venvDir:
// when no environment is active (VIRTUAL_ENV unset) and the directory
// exists, VIRTUAL_ENV is set and the environment's bin directory is
// prepended to PATH. It returns the resulting environment and whether
// activation happened. A missing directory is not an error — the pipeline
// simply runs against the ambient environment.
func ActivateEnv(environ []string, venvDir string) ([]string, bool) {
	if _, active := lookupEnv(environ, virtualEnvVar); active {
		return environ, false
	}
	info, err := os.Stat(venvDir)
	if err != nil || !info.IsDir() {
		return environ, false
	}

	abs, err := filepath.Abs(venvDir)
	if err != nil {
		abs = venvDir
	}
	environ = setEnv(environ, virtualEnvVar, abs)

	bin := filepath.Join(abs, "bin")
	if path, ok := lookupEnv(environ, pathVar); ok && path != "" {
		environ = setEnv(environ, pathVar, bin+string(os.PathListSeparator)+path)
	} else {
		environ = setEnv(environ, pathVar, bin)
	}
	return environ, true
}

// SetSearchPath exports the module search path combining dirs with any
// pre-existing value, which stays at the end so local sources win.
func SetSearchPath(environ []string, dirs []string) []string {
	parts := append([]string{}, dirs...)
	if existing, ok := lookupEnv(environ, searchPathVar); ok && existing != "" {
		parts = append(parts, existing)
	}
	return setEnv(environ, searchPathVar, strings.Join(parts, string(os.PathListSeparator)))
}
