package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	appName    = "beamline"
	appVersion = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Node lifecycle and remote debug control for BEAM projects",
	Long: `Beamline manages development nodes for registered BEAM projects:
  - MCP server exposing node and debug tools to AI coding assistants
  - Idempotent node startup with an attachable pty console
  - Remote compile, code inspection, breakpoints, stepping, and tracing
  - Project registry with ordered first-match file resolution`,
	Version: appVersion,
	// Default behavior: if stdin is not a terminal, run as MCP server
	Run: func(cmd *cobra.Command, args []string) {
		if !isTerminal(os.Stdin) {
			runServe(cmd, args)
		} else {
			cmd.Help()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Project registry file (defaults to the user config dir)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(debugCmd)

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
