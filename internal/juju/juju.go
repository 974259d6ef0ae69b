// Package juju drives charm deployment through the juju CLI.
//
// juju is treated as an opaque collaborator: commands are built and
// executed as child processes and their native output is surfaced on
// failure. Only `juju status --format json` output is parsed, and only
// the application status fields the deploy wait needs.
package juju

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/canonical/livepatch-ops/internal/model"
)

// statusPollInterval is the steady-state interval between status polls
// while waiting for an application to settle.
const statusPollInterval = 5 * time.Second

// BuildDeployArgs constructs the argument list for `juju deploy` from a
// deploy plan. Resources are emitted in sorted name order so the produced
// command line is deterministic.
func BuildDeployArgs(plan model.DeployPlan) []string {
	args := []string{"deploy", plan.ArtifactPath, plan.Application}
	if plan.Model != "" {
		args = append(args, "--model", plan.Model)
	}

	names := make([]string, 0, len(plan.Resources))
	for name := range plan.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--resource", name+"="+plan.Resources[name])
	}
	return args
}

// Deploy deploys the packed charm artifact with its image resources.
func Deploy(ctx context.Context, plan model.DeployPlan) error {
	output, err := runJuju(ctx, BuildDeployArgs(plan)...)
	if err != nil {
		return model.WrapCLIError(model.ExitJujuError,
			fmt.Sprintf("juju deploy failed: %s", output), err)
	}
	return nil
}

// ApplicationStatus is the parsed status of one deployed application.
type ApplicationStatus struct {
	// Current is the application status value: active, waiting, blocked,
	// error, and so on.
	Current string

	// Message is the workload status message, e.g.
	// "waiting for schema upgrade".
	Message string
}

// statusOutput mirrors the fragment of `juju status --format json` that
// carries application status.
type statusOutput struct {
	Applications map[string]struct {
		ApplicationStatus struct {
			Current string `json:"current"`
			Message string `json:"message"`
		} `json:"application-status"`
	} `json:"applications"`
}

// parseApplicationStatus extracts the status of app from raw status JSON.
func parseApplicationStatus(data []byte, app string) (ApplicationStatus, error) {
	var out statusOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ApplicationStatus{}, fmt.Errorf("failed to parse juju status output: %w", err)
	}
	entry, ok := out.Applications[app]
	if !ok {
		return ApplicationStatus{}, fmt.Errorf("application %q not found in model", app)
	}
	return ApplicationStatus{
		Current: entry.ApplicationStatus.Current,
		Message: entry.ApplicationStatus.Message,
	}, nil
}

// Status fetches the status of app in the given model (empty for the
// current model).
func Status(ctx context.Context, jujuModel, app string) (ApplicationStatus, error) {
	args := []string{"status", "--format", "json"}
	if jujuModel != "" {
		args = append(args, "--model", jujuModel)
	}
	output, err := runJuju(ctx, args...)
	if err != nil {
		return ApplicationStatus{}, model.WrapCLIError(model.ExitJujuError,
			fmt.Sprintf("juju status failed: %s", output), err)
	}

	status, err := parseApplicationStatus([]byte(output), app)
	if err != nil {
		return ApplicationStatus{}, model.WrapCLIError(model.ExitJujuError, "bad juju status", err)
	}
	return status, nil
}

// WaitActive polls the application status until it reaches active,
// the timeout elapses, or the application enters a terminal bad state.
// A blocked or error status short-circuits the wait: the charm will not
// recover without operator input (e.g. "waiting for schema upgrade"),
// so continuing to poll only hides the message.
func WaitActive(ctx context.Context, jujuModel, app string, timeout time.Duration) error {
	op := func() error {
		status, err := Status(ctx, jujuModel, app)
		if err != nil {
			return backoff.Permanent(err)
		}
		switch status.Current {
		case "active":
			return nil
		case "blocked", "error":
			return backoff.Permanent(model.NewCLIError(model.ExitJujuError,
				fmt.Sprintf("application %q is %s: %s", app, status.Current, status.Message)))
		default:
			return fmt.Errorf("application %q is %s: %s", app, status.Current, status.Message)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = statusPollInterval
	bo.MaxElapsedTime = timeout

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			return cliErr
		}
		return model.WrapCLIError(model.ExitJujuError,
			fmt.Sprintf("application %q did not become active within %s", app, timeout), err)
	}
	return nil
}

// RunAction runs a charm action on a unit via `juju run` and returns the
// command output. Parameters are emitted in sorted key order.
func RunAction(ctx context.Context, jujuModel, unit, action string, params map[string]string) (string, error) {
	args := []string{"run"}
	if jujuModel != "" {
		args = append(args, "--model", jujuModel)
	}
	args = append(args, unit, action)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+params[k])
	}

	output, err := runJuju(ctx, args...)
	if err != nil {
		return "", model.WrapCLIError(model.ExitJujuError,
			fmt.Sprintf("juju run %s failed: %s", action, output), err)
	}
	return output, nil
}

// runJuju executes juju with the given arguments and returns trimmed
// combined output.
func runJuju(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "juju", args...)
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}
