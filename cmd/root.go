package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcp-prometheus-alerts",
	Short: "MCP server for Prometheus alert rules",
	Long: `mcp-prometheus-alerts is a Model Context Protocol (MCP) server that gives
AI assistants access to the alert rules of one or more Prometheus servers.

Servers are configured through indexed environment variables
(PROMETHEUS_SERVER_0 through PROMETHEUS_SERVER_9), each holding a JSON
object with the server name, URL and optional bearer token. Tools can
list the configured servers, verify connectivity, and fetch alert rules
filtered by state, rule group or alert name, with summary statistics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version for the root command
func SetVersion(version string) {
	rootCmd.Version = version
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
