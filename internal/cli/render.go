// render.go implements "livepatch-ops render-layer": map a charm config
// file to the server's LP_* environment and print the pebble service
// layer that would run the server under it. Useful for inspecting what a
// config change does to the workload before deploying it.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/workload"
)

// renderFlags holds the flag values for the render-layer command.
type renderFlags struct {
	charmConfig string // --charm-config: charm config YAML file
	leader      bool   // --leader: render for the leader unit
	syncToken   string // --sync-token: patch sync resource token
	envOnly     bool   // --env-only: print the environment, not the layer
}

// NewRenderLayerCommand creates the "render-layer" cobra command.
func NewRenderLayerCommand() *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render-layer",
		Short: "Render the livepatch pebble layer for a charm config",
		Long: `Map charm config keys to the server's LP_* environment variables
("patch-storage.type" becomes LP_PATCH_STORAGE_TYPE and so on), inject the
server address and patch sync token, and print the resulting pebble
service layer as YAML. Empty values are dropped so server defaults apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenderLayer(flags)
		},
	}

	cmd.Flags().StringVar(&flags.charmConfig, "charm-config", "", "Charm config YAML file (required)")
	cmd.Flags().BoolVar(&flags.leader, "leader", false, "Render for the leader unit")
	cmd.Flags().StringVar(&flags.syncToken, "sync-token", "", "Patch sync resource token to inject")
	cmd.Flags().BoolVar(&flags.envOnly, "env-only", false, "Print only the environment variables")
	_ = cmd.MarkFlagRequired("charm-config")

	return cmd
}

func runRenderLayer(flags *renderFlags) error {
	cfg, err := workload.LoadCharmConfig(flags.charmConfig)
	if err != nil {
		return err
	}

	env := workload.MapConfigToEnv(cfg, flags.leader, map[string]string{
		"LP_SERVER_ADDRESS": workload.ServerAddress,
		"PATCH_SYNC_TOKEN":  flags.syncToken,
	})

	if flags.envOnly {
		if IsJSONOutput() {
			printJSON(env)
			return nil
		}
		for _, key := range workload.SortedKeys(env) {
			fmt.Printf("%s=%s\n", key, env[key])
		}
		return nil
	}

	layer := workload.NewLayer(env)
	if IsJSONOutput() {
		printJSON(layer)
		return nil
	}

	data, err := layer.Render()
	if err != nil {
		return err
	}
	_, _ = os.Stdout.Write(data)
	return nil
}
