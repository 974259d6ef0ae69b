// Package schema implements the database schema upgrade workflow: gate on
// postgres accepting connections via pg_isready, then run the livepatch
// schema tool against the upgrades directory.
//
// The server refuses to start until the schema upgrade has run, so this
// is the first operational step after a fresh deploy.
package schema

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/canonical/livepatch-ops/internal/model"
)

// DefaultTool is the schema tool binary shipped in the schema-tool image.
const DefaultTool = "livepatch-schema-tool"

// Readiness is the outcome of a pg_isready probe. The values mirror
// pg_isready's documented exit statuses.
type Readiness int

const (
	// Connected: the server is accepting connections.
	Connected Readiness = 0

	// Rejected: the server answered but refused the connection, commonly
	// because it is still starting up.
	Rejected Readiness = 1

	// NoResponse: nothing answered at the given address.
	NoResponse Readiness = 2

	// NoAttempt: no probe was made, the parameters were invalid.
	NoAttempt Readiness = 3
)

// String returns the operator-facing description of the state, matching
// the status messages the charm historically reported.
func (r Readiness) String() string {
	switch r {
	case Connected:
		return "server is accepting connections"
	case Rejected:
		return "server rejected connection, may be starting up"
	case NoResponse:
		return "no response at specified address, please check your db configuration"
	case NoAttempt:
		return "invalid connection parameters"
	default:
		return fmt.Sprintf("unknown pg_isready state %d", int(r))
	}
}

// ParseDSN converts a postgres connection string into the PG* environment
// variables pg_isready consumes.
func ParseDSN(dsn string) (map[string]string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database connection string: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("database connection string must use a postgres scheme, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("database connection string has no host")
	}

	env := map[string]string{
		"PGHOST": u.Hostname(),
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			env["PGUSER"] = user
		}
		if pass, ok := u.User.Password(); ok {
			env["PGPASSWORD"] = pass
		}
	}
	if port := u.Port(); port != "" {
		env["PGPORT"] = port
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		env["PGDATABASE"] = db
	}
	return env, nil
}

// Check probes the database described by dsn with pg_isready and returns
// its readiness state. An error is returned only when the probe could not
// be run at all; every pg_isready exit status maps to a state.
func Check(ctx context.Context, dsn string) (Readiness, error) {
	env, err := ParseDSN(dsn)
	if err != nil {
		return NoAttempt, model.WrapCLIError(model.ExitSchemaError, "cannot check database readiness", err)
	}

	cmd := exec.CommandContext(ctx, "pg_isready")
	cmd.Env = append(os.Environ(), flattenEnv(env)...)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Readiness(exitErr.ExitCode()), nil
		}
		return NoAttempt, model.WrapCLIError(model.ExitSchemaError, "failed to run pg_isready", err)
	}
	return Connected, nil
}

// Upgrade runs the schema tool's upgrade command against schemaDir after
// confirming the database accepts connections. Any non-connected state
// aborts with that state's message; the tool's own output is surfaced
// unchanged on failure.
func Upgrade(ctx context.Context, tool, dsn, schemaDir string) error {
	state, err := Check(ctx, dsn)
	if err != nil {
		return err
	}
	if state != Connected {
		return model.NewCLIError(model.ExitSchemaError, state.String())
	}

	if tool == "" {
		tool = DefaultTool
	}
	cmd := exec.CommandContext(ctx, tool, "upgrade", schemaDir)
	cmd.Env = append(os.Environ(), "DB="+dsn)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(model.ExitSchemaError,
			fmt.Sprintf("schema upgrade failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}

// flattenEnv converts an env map to the KEY=value form exec.Cmd expects.
func flattenEnv(env map[string]string) []string {
	flat := make([]string, 0, len(env))
	for k, v := range env {
		flat = append(flat, k+"="+v)
	}
	return flat
}
