// deploy.go implements "livepatch-ops deploy", the full release flow:
// pack the charm, then build and push the images, then deploy the packed
// artifact with the image resources attached. The three phases run in
// that literal order and the first failure aborts the rest.
package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/charm"
	"github.com/canonical/livepatch-ops/internal/juju"
	"github.com/canonical/livepatch-ops/internal/model"
)

// Seams for the deploy phases. Tests swap these to observe the sequence
// without shelling out to charmcraft, docker or juju.
var (
	packCharm     = charm.Pack
	pushAllImages = pushImages
	deployCharm   = juju.Deploy
	waitForActive = juju.WaitActive
)

// deployFlags holds the flag values for the deploy command.
type deployFlags struct {
	destructive bool          // --destructive-mode: passed through to pack
	skipBuild   bool          // --skip-build: push existing images without rebuilding
	wait        bool          // --wait: block until the application is active
	waitTimeout time.Duration // --wait-timeout: bound for --wait
}

// NewDeployCommand creates the "deploy" cobra command.
func NewDeployCommand() *cobra.Command {
	flags := &deployFlags{}

	cmd := &cobra.Command{
		Use:     "deploy",
		Aliases: []string{"deploy-onprem-k8s"},
		Short:   "Pack, push and deploy the livepatch charm",
		Long: `Run the full release flow: pack the operator charm, build and push the
livepatch images to the local registry, then deploy the packed charm with
the server and schema-tool images attached as resources alongside the
pre-existing onprem image.

The steps always run pack, then push, then deploy, stopping at the first
failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.destructive, "destructive-mode", false,
		"Pack on the host instead of in a charmcraft-managed container (needs host privileges)")
	cmd.Flags().BoolVar(&flags.skipBuild, "skip-build", false,
		"Retag and push existing local images without rebuilding")
	cmd.Flags().BoolVar(&flags.wait, "wait", false,
		"Wait for the deployed application to reach active status")
	cmd.Flags().DurationVar(&flags.waitTimeout, "wait-timeout", 10*time.Minute,
		"How long --wait blocks before giving up")

	return cmd
}

// runDeploy orchestrates the pack → push → deploy sequence.
func runDeploy(cmd *cobra.Command, flags *deployFlags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The charm metadata names the application and declares the resource
	// slots; resolving it first catches a bad charm dir before any slow
	// image builds run.
	meta, err := charm.LoadMetadata(cfg.CharmDir)
	if err != nil {
		return err
	}

	resources := cfg.ResourceMap()
	if missing := meta.MissingResources(resources); len(missing) > 0 {
		return model.NewCLIError(model.ExitCharmError,
			fmt.Sprintf("charm %q does not declare resource(s): %v", meta.Name, missing))
	}

	// Step 1: pack.
	VerboseLog("Packing charm in %s...", cfg.CharmDir)
	artifact, err := packCharm(ctx, cfg.CharmDir, flags.destructive)
	if err != nil {
		return err
	}
	VerboseLog("Packed charm: %s", artifact)

	// Step 2: push.
	results, err := pushAllImages(ctx, cfg, flags.skipBuild)
	if err != nil {
		return err
	}

	// Step 3: deploy.
	plan := model.DeployPlan{
		ArtifactPath: artifact,
		Application:  meta.Name,
		Model:        cfg.JujuModel,
		Resources:    resources,
	}
	VerboseLog("Deploying %s as %q...", artifact, meta.Name)
	if err := deployCharm(ctx, plan); err != nil {
		return err
	}

	if flags.wait {
		VerboseLog("Waiting up to %s for %q to become active...", flags.waitTimeout, meta.Name)
		if err := waitForActive(ctx, cfg.JujuModel, meta.Name, flags.waitTimeout); err != nil {
			return err
		}
	}

	printDeployResult(plan, results, flags.wait)
	return nil
}

// printDeployResult outputs the deploy summary in text or JSON format.
func printDeployResult(plan model.DeployPlan, images []pushResult, waited bool) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"application": plan.Application,
			"artifact":    plan.ArtifactPath,
			"model":       plan.Model,
			"resources":   plan.Resources,
			"images":      images,
			"active":      waited,
		})
		return
	}

	fmt.Printf("Deployed %q\n", plan.Application)
	fmt.Printf("  Artifact:  %s\n", plan.ArtifactPath)
	if plan.Model != "" {
		fmt.Printf("  Model:     %s\n", plan.Model)
	}
	fmt.Println("  Resources:")
	for _, name := range sortedResourceNames(plan.Resources) {
		fmt.Printf("    %-38s %s\n", name, plan.Resources[name])
	}
	if waited {
		fmt.Println("  Status:    active")
	}
}

// sortedResourceNames returns the resource names in stable order for
// text output.
func sortedResourceNames(resources map[string]string) []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
