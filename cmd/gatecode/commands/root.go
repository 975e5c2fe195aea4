// Package commands provides the CLI commands for gatecode.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatecode-ai/gatecode/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel  string
	logPretty bool
)

var rootCmd = &cobra.Command{
	Use:   "gatecode",
	Short: "gatecode - execution gate for AI coding agents",
	Long: `gatecode mediates what an AI coding agent may execute: every tool call
passes a mode-aware visibility gate, a path sanitizer, and an interactive
permission broker before it touches the workspace.

Run 'gatecode serve' to start the gate server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: logPretty,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("gatecode %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
