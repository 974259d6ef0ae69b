// Package cli implements the cobra commands for livepatch-ops.
//
// Each subcommand (push, pack, deploy, check, resource-token,
// schema-upgrade, render-layer) lives in its own file. This file defines
// the root command, the global flags, and the error-to-exit-code
// translation.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/config"
	"github.com/canonical/livepatch-ops/internal/model"
)

// Global flag variables, bound to persistent flags on the root command so
// every subcommand picks them up.
var (
	// jsonOutput switches stdout to structured JSON for machine
	// consumption. Errors stay on stderr either way.
	jsonOutput bool

	// verbose enables step-by-step progress output on stderr.
	verbose bool

	// configPath is the tool config file location.
	configPath string
)

// Version, Commit and Date are injected from the main package, which
// receives them from ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command. The root
// performs no action itself; the work lives in the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "livepatch-ops",
		Short: "Build, package and deploy tooling for the livepatch on-prem server",
		Long: `livepatch-ops drives the livepatch on-prem operational workflow:
building and pushing the server, schema-tool and admin-tool container
images to a local registry, packing the operator charm, deploying it with
its image resources attached, running the lint/test pipeline, and the
post-deploy database and token operations.`,

		// Errors are formatted by Execute (text or JSON), so cobra's own
		// usage/error printing is silenced.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName,
		"Tool configuration file (JSONC)")

	rootCmd.AddCommand(NewPushCommand())
	rootCmd.AddCommand(NewPackCommand())
	rootCmd.AddCommand(NewDeployCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewResourceTokenCommand())
	rootCmd.AddCommand(NewSchemaUpgradeCommand())
	rootCmd.AddCommand(NewRenderLayerCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into process exit
// codes: CLIError values carry their own code, everything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}
		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// loadConfig loads the tool configuration honoring the --config flag.
// The file is only required when the flag was set explicitly; otherwise
// a missing default file falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	return config.Load(configPath, explicit)
}

// printError outputs an error to stderr, as JSON when --json is set.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a progress message to stderr when --verbose is set.
// stdout stays reserved for command output.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
