// File: cmd/root_test.go
package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findSubcommand resolves a registered subcommand by name.
func findSubcommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, sub := range root.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	t.Fatalf("subcommand %q not registered", name)
	return nil
}

func TestRootCommand(t *testing.T) {

	t.Run("should register the console subcommands", func(t *testing.T) {
		for _, name := range []string{"graph", "apps", "eval", "version"} {
			assert.NotNil(t, findSubcommand(t, rootCmd, name))
		}
	})

	t.Run("should expose the backend scope flags", func(t *testing.T) {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("group"))
	})

	t.Run("should carry the build version", func(t *testing.T) {
		require.NotEmpty(t, Version)
		assert.Equal(t, Version, rootCmd.Version)
	})
}

func TestGraphCommand(t *testing.T) {

	graphCmd := findSubcommand(t, rootCmd, "graph")

	t.Run("should group the session subcommands", func(t *testing.T) {
		for _, name := range []string{"show", "layout", "snapshot"} {
			assert.NotNil(t, findSubcommand(t, graphCmd, name))
		}
	})

	t.Run("layout should accept strategy and direction overrides", func(t *testing.T) {
		layoutCmd := findSubcommand(t, graphCmd, "layout")
		assert.NotNil(t, layoutCmd.Flags().Lookup("strategy"))
		assert.NotNil(t, layoutCmd.Flags().Lookup("direction"))
	})

	t.Run("show should demand exactly one app id", func(t *testing.T) {
		showCmd := findSubcommand(t, graphCmd, "show")
		assert.Error(t, showCmd.Args(showCmd, nil))
		assert.NoError(t, showCmd.Args(showCmd, []string{"app-1"}))
		assert.Error(t, showCmd.Args(showCmd, []string{"a", "b"}))
	})
}

func TestEvalCommand(t *testing.T) {

	evalCmd := findSubcommand(t, rootCmd, "eval")

	t.Run("should expose the evaluation flags", func(t *testing.T) {
		assert.NotNil(t, evalCmd.Flags().Lookup("schedule"))
		assert.NotNil(t, evalCmd.Flags().Lookup("from"))
		assert.NotNil(t, evalCmd.Flags().Lookup("attributes"))
	})
}

func TestAppsCommand(t *testing.T) {

	appsCmd := findSubcommand(t, rootCmd, "apps")

	t.Run("should take no positional arguments", func(t *testing.T) {
		assert.NoError(t, appsCmd.Args(appsCmd, nil))
		assert.Error(t, appsCmd.Args(appsCmd, []string{"extra"}))
	})

	t.Run("should offer the attack-graph listing flag", func(t *testing.T) {
		assert.NotNil(t, appsCmd.Flags().Lookup("attack-graphs"))
	})
}
