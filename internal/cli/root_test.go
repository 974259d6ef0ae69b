package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRootCommand verifies the command tree: every operation the tool
// exposes must be registered, and the global flags must exist.
func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	want := []string{"push", "pack", "deploy", "check", "resource-token", "schema-upgrade", "render-layer"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, "command %q must be registered", name)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("json"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

// TestLegacyTargetAliases verifies the historical Makefile target names
// still resolve to their replacement commands.
func TestLegacyTargetAliases(t *testing.T) {
	root := NewRootCommand()

	aliases := map[string]string{
		"microk8s-push":     "push",
		"operator-prod-k8s": "pack",
		"deploy-onprem-k8s": "deploy",
	}
	for alias, name := range aliases {
		cmd, _, err := root.Find([]string{alias})
		require.NoError(t, err, "alias %q must resolve", alias)
		assert.Equal(t, name, cmd.Name())
	}
}

// TestSubcommandFlags pins the flags the documented workflows depend on.
func TestSubcommandFlags(t *testing.T) {
	root := NewRootCommand()

	deploy, _, err := root.Find([]string{"deploy"})
	require.NoError(t, err)
	for _, flag := range []string{"destructive-mode", "skip-build", "wait", "wait-timeout"} {
		assert.NotNil(t, deploy.Flags().Lookup(flag), "deploy needs --%s", flag)
	}

	pack, _, err := root.Find([]string{"pack"})
	require.NoError(t, err)
	assert.NotNil(t, pack.Flags().Lookup("destructive-mode"))

	token, _, err := root.Find([]string{"resource-token"})
	require.NoError(t, err)
	assert.NotNil(t, token.Flags().Lookup("contract-token"))
	assert.NotNil(t, token.Flags().Lookup("unit"))

	upgrade, _, err := root.Find([]string{"schema-upgrade"})
	require.NoError(t, err)
	for _, flag := range []string{"db", "schema-dir", "tool", "check-only", "unit"} {
		assert.NotNil(t, upgrade.Flags().Lookup(flag), "schema-upgrade needs --%s", flag)
	}
}

func TestSortedResourceNames(t *testing.T) {
	names := sortedResourceNames(map[string]string{
		"livepatch-server-image":              "a",
		"livepatch-onprem-image":              "b",
		"livepatch-schema-upgrade-tool-image": "c",
	})
	assert.Equal(t, []string{
		"livepatch-onprem-image",
		"livepatch-schema-upgrade-tool-image",
		"livepatch-server-image",
	}, names)
}
