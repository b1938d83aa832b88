package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mcplab",
	Short: "Connect to MCP tool servers on behalf of API users",
	Long: `mcplab connects to remote MCP tool servers for its API callers.

It lists tools and resources, invokes tools, and runs the OAuth 2.1
authorization code flow (with discovery, dynamic client registration and
PKCE) when a tool server requires authorization. Access tokens are stored
encrypted per user and server record.

Configuration is read from a YAML file (--config, MCPLAB_CONFIG,
./config.yaml or /etc/mcplab/config.yaml), a .env file and MCPLAB_*
environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newEncryptTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
