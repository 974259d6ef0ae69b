// push.go implements "livepatch-ops push": build the livepatch container
// images, retag them under the local registry namespace, push them all,
// and verify each pushed manifest is actually served.
//
// The phases run image-by-image within a phase but strictly in sequence
// across phases (all builds, then all tags, then all pushes), matching
// the historical Makefile target.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/livepatch-ops/internal/config"
	"github.com/canonical/livepatch-ops/internal/docker"
	"github.com/canonical/livepatch-ops/internal/registry"
)

// pushResult reports one pushed image: its local-registry reference and
// the digest the registry serves for it.
type pushResult struct {
	Name   string `json:"name"`
	Ref    string `json:"ref"`
	Digest string `json:"digest"`
}

// NewPushCommand creates the "push" cobra command.
func NewPushCommand() *cobra.Command {
	var skipBuild bool

	cmd := &cobra.Command{
		Use: "push",
		// The alias preserves the name of the Makefile target this
		// command replaced.
		Aliases: []string{"microk8s-push"},
		Short:   "Build the livepatch images and push them to the local registry",
		Long: `Build the livepatch server, schema-tool and admin-tool container images,
retag them under the configured local registry (default localhost:32000),
push all three, and verify the registry serves each pushed manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			results, err := pushImages(cmd.Context(), cfg, skipBuild)
			if err != nil {
				return err
			}
			printPushResults(results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipBuild, "skip-build", false,
		"Retag and push existing local images without rebuilding")

	return cmd
}

// pushImages runs the build → tag → push → verify phases for every
// configured image. It is shared with the deploy command, which needs the
// same push step between packing and deploying.
func pushImages(ctx context.Context, cfg *config.Config, skipBuild bool) ([]pushResult, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}

	if !skipBuild {
		for _, img := range cfg.Images {
			VerboseLog("Building image %s from %s...", img.Ref(), img.Context)
			if err := docker.BuildImage(ctx, img); err != nil {
				return nil, err
			}
		}
	}

	for _, img := range cfg.Images {
		target := img.LocalRef(cfg.Registry)
		VerboseLog("Tagging %s as %s...", img.Ref(), target)
		if err := docker.TagImage(ctx, cli, img.Ref(), target); err != nil {
			return nil, err
		}
	}

	// Push progress is only worth showing in verbose mode; the daemon's
	// status lines are noisy.
	var progress io.Writer
	if verbose {
		progress = os.Stderr
	}

	results := make([]pushResult, 0, len(cfg.Images))
	for _, img := range cfg.Images {
		ref := img.LocalRef(cfg.Registry)
		VerboseLog("Pushing %s...", ref)
		if err := docker.PushImage(ctx, cli, ref, progress); err != nil {
			return nil, err
		}

		digest, err := registry.VerifyPushed(ctx, ref)
		if err != nil {
			return nil, err
		}
		VerboseLog("Verified %s (%s)", ref, digest)
		results = append(results, pushResult{Name: img.Name, Ref: ref, Digest: digest})
	}

	return results, nil
}

// printPushResults outputs the push results in text or JSON format.
func printPushResults(results []pushResult) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{"images": results})
		return
	}

	fmt.Printf("Pushed %d image(s)\n", len(results))
	for _, r := range results {
		fmt.Printf("  %-24s %s\n", r.Name, r.Ref)
		fmt.Printf("  %-24s   %s\n", "", r.Digest)
	}
}
