// schema.go implements "livepatch-ops schema-upgrade": check that the
// configured postgres database accepts connections, then run the schema
// tool's upgrade against it. The server stays blocked until this has run
// once after a fresh deploy.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/juju"
	"github.com/canonical/livepatch-ops/internal/schema"
)

// schemaFlags holds the flag values for the schema-upgrade command.
type schemaFlags struct {
	dsn       string // --db: postgres connection string
	schemaDir string // --schema-dir: directory of schema upgrade scripts
	tool      string // --tool: schema tool binary
	checkOnly bool   // --check-only: probe readiness without upgrading
	unit      string // --unit: run the charm action on this unit instead
}

// NewSchemaUpgradeCommand creates the "schema-upgrade" cobra command.
func NewSchemaUpgradeCommand() *cobra.Command {
	flags := &schemaFlags{}

	cmd := &cobra.Command{
		Use:   "schema-upgrade",
		Short: "Upgrade the livepatch database schema",
		Long: `Probe the database with pg_isready and, once it accepts connections, run
the schema tool's upgrade command against the schema upgrades directory.
Any other readiness state (rejected, no response, invalid parameters)
aborts with that state's message.

With --unit, the upgrade is performed by the charm's schema-upgrade
action on the given unit instead of locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaUpgrade(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dsn, "db", "", "Postgres connection string (required unless --unit)")
	cmd.Flags().StringVar(&flags.schemaDir, "schema-dir", "/usr/src/livepatch/schema-upgrades",
		"Directory containing the schema upgrade scripts")
	cmd.Flags().StringVar(&flags.tool, "tool", schema.DefaultTool, "Schema tool binary")
	cmd.Flags().BoolVar(&flags.checkOnly, "check-only", false, "Only report database readiness")
	cmd.Flags().StringVar(&flags.unit, "unit", "", "Run the charm action on this unit, e.g. livepatch/0")

	return cmd
}

func runSchemaUpgrade(cmd *cobra.Command, flags *schemaFlags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if flags.unit != "" {
		VerboseLog("Running schema-upgrade on unit %s...", flags.unit)
		output, err := juju.RunAction(ctx, cfg.JujuModel, flags.unit, "schema-upgrade", nil)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			printJSON(map[string]string{"unit": flags.unit, "result": output})
		} else {
			fmt.Println(output)
		}
		return nil
	}

	if flags.dsn == "" {
		return fmt.Errorf("--db is required unless --unit is given")
	}

	if flags.checkOnly {
		state, err := schema.Check(ctx, flags.dsn)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			printJSON(map[string]interface{}{"state": int(state), "message": state.String()})
		} else {
			fmt.Println(state.String())
		}
		return nil
	}

	VerboseLog("Checking database readiness...")
	if err := schema.Upgrade(ctx, flags.tool, flags.dsn, flags.schemaDir); err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]string{"result": "done"})
	} else {
		fmt.Println("Schema migration done")
	}
	return nil
}
