package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "plenum",
	Short: "Multi-agent conversation server",
	Long: `Plenum runs teams of LLM-backed agents over a shared session and
streams their turns to clients over WebSocket.

Agents take turns selected by a weighted speaker selector, call registered
tools (optionally gated by human approval), and pull stored memories into
their prompt. Sessions, transcripts and spend are persisted per user.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(versionCmd)
}
