package model

import "fmt"

// ExitCode defines the CLI exit codes. Each failure domain gets its own
// code so scripts wrapping livepatch-ops can branch on the outcome without
// parsing error text.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the tool configuration file was missing,
	// malformed, or failed validation.
	ExitConfigError ExitCode = 2

	// ExitDockerError indicates the Docker daemon was unreachable or an
	// image build/tag/push operation failed.
	ExitDockerError ExitCode = 3

	// ExitRegistryError indicates the local registry did not serve a
	// manifest for a pushed image.
	ExitRegistryError ExitCode = 4

	// ExitCharmError indicates charm metadata parsing or charmcraft
	// packaging failed.
	ExitCharmError ExitCode = 5

	// ExitJujuError indicates a juju deploy, status, or action invocation
	// failed, or the application never reached active status.
	ExitJujuError ExitCode = 6

	// ExitPipelineError indicates a lint/test/coverage pipeline step
	// exited non-zero. The step's own exit status is reported in the
	// error message; the pipeline is fail-fast.
	ExitPipelineError ExitCode = 7

	// ExitContractsError indicates the contracts service rejected a token
	// exchange or returned an empty token.
	ExitContractsError ExitCode = 8

	// ExitSchemaError indicates the database was not ready for a schema
	// upgrade or the schema tool itself failed.
	ExitSchemaError ExitCode = 9
)

// CLIError is an error that carries an exit code, letting the CLI layer
// translate failures from any package into the right process exit status.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
