// check.go implements "livepatch-ops check", the lint/test/coverage
// pipeline: optionally activate the project's isolated environment,
// export the module search path, then run the lint, coverage-instrumented
// test, and coverage report steps in order with fail-fast semantics.
// Arguments after "--" are forwarded to the test step.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/model"
	"github.com/canonical/livepatch-ops/internal/pipeline"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [-- test-args...]",
		Short: "Run the lint, test and coverage pipeline",
		Long: `Run the project's static analysis, coverage-instrumented test suite, and
coverage report, in that order. The pipeline is fail-fast: the first
failing step aborts the rest and its exit status is reported.

If no isolated environment is active and the configured venv directory
exists, it is activated for the pipeline. Arguments after "--" are
forwarded to the test step:

  livepatch-ops check -- -k test_schema`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
	return cmd
}

// runCheck assembles the pipeline environment and executes the steps.
func runCheck(cmd *cobra.Command, extraArgs []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	check := cfg.Check

	environ, activated := pipeline.ActivateEnv(os.Environ(), check.VenvDir)
	if activated {
		VerboseLog("Activated environment at %s", check.VenvDir)
	} else {
		VerboseLog("No environment activation (already active or %q missing)", check.VenvDir)
	}
	environ = pipeline.SetSearchPath(environ, check.SearchPath)

	// Forwarded arguments extend the test step only; lint and report run
	// exactly as configured.
	test := check.Test
	test.Args = append(append([]string{}, test.Args...), extraArgs...)

	steps := []model.PipelineStep{check.Lint, test, check.Report}
	for _, step := range steps {
		VerboseLog("Step %s: %s", step.Name, step)
	}

	runner := &pipeline.Runner{Env: environ}
	if err := runner.Run(cmd.Context(), steps); err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{"steps": steps, "activated": activated})
	} else {
		fmt.Printf("All %d pipeline steps passed\n", len(steps))
	}
	return nil
}
