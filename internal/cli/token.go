// token.go implements "livepatch-ops resource-token": exchange a contract
// token for a machine token and then for the livepatch resource token the
// server needs to sync patches.
//
// By default the exchange runs locally against the contracts service.
// With --unit it is delegated to the charm's get-resource-token action on
// a deployed unit, which also stores the token in the charm's peer data.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/contracts"
	"github.com/canonical/livepatch-ops/internal/juju"
)

// tokenFlags holds the flag values for the resource-token command.
type tokenFlags struct {
	contractToken string // --contract-token: the Ubuntu Pro contract token
	unit          string // --unit: run the charm action on this unit instead
}

// NewResourceTokenCommand creates the "resource-token" cobra command.
func NewResourceTokenCommand() *cobra.Command {
	flags := &tokenFlags{}

	cmd := &cobra.Command{
		Use:   "resource-token",
		Short: "Fetch the livepatch resource token from the contracts service",
		Long: `Exchange a contract token for a machine token and the machine token for
the livepatch-onprem resource token. Proxy settings come from the tool
config or the JUJU_CHARM_*_PROXY environment.

With --unit, the exchange is performed by the charm's get-resource-token
action on the given unit instead of locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceToken(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.contractToken, "contract-token", "", "Contract token to exchange (required)")
	cmd.Flags().StringVar(&flags.unit, "unit", "", "Run the charm action on this unit, e.g. livepatch/0")
	_ = cmd.MarkFlagRequired("contract-token")

	return cmd
}

func runResourceToken(cmd *cobra.Command, flags *tokenFlags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if flags.unit != "" {
		VerboseLog("Running get-resource-token on unit %s...", flags.unit)
		output, err := juju.RunAction(ctx, cfg.JujuModel, flags.unit, "get-resource-token",
			map[string]string{"contract-token": flags.contractToken})
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

	client := contracts.NewClient(cfg.ContractsURL, contracts.Proxy{
		HTTP:  cfg.Proxy.HTTP,
		HTTPS: cfg.Proxy.HTTPS,
		No:    cfg.Proxy.No,
	})

	VerboseLog("Fetching machine token from %s...", cfg.ContractsURL)
	machineToken, err := client.MachineToken(ctx, flags.contractToken)
	if err != nil {
		return err
	}

	VerboseLog("Fetching resource token...")
	resourceToken, err := client.ResourceToken(ctx, machineToken)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]string{"resourceToken": resourceToken})
	} else {
		fmt.Println(resourceToken)
	}
	return nil
}
