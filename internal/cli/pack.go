// pack.go implements "livepatch-ops pack": remove any stale charm
// artifact and package the operator charm with charmcraft.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/charm"
)

// NewPackCommand creates the "pack" cobra command.
func NewPackCommand() *cobra.Command {
	var destructive bool

	cmd := &cobra.Command{
		Use:     "pack",
		Aliases: []string{"operator-prod-k8s"},
		Short:   "Package the operator charm",
		Long: `Remove any existing .charm artifact from the charm source directory and
package a fresh one with charmcraft. The produced artifact path is printed
on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			VerboseLog("Packing charm in %s...", cfg.CharmDir)
			artifact, err := charm.Pack(cmd.Context(), cfg.CharmDir, destructive)
			if err != nil {
				return err
			}

			if IsJSONOutput() {
				printJSON(map[string]string{"artifact": artifact})
			} else {
				fmt.Printf("Packed charm: %s\n", artifact)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&destructive, "destructive-mode", false,
		"Pack on the host instead of in a charmcraft-managed container (needs host privileges)")

	return cmd
}
