package main

import (
	"os"

	"github.com/grovetools/agentd/cli"
	"github.com/grovetools/agentd/cmd"
	"github.com/grovetools/agentd/version"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"agentd",
		"Session and process orchestration for CLI agents",
	)
	cli.SetVersionTemplate(rootCmd, version.Get())

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewSessionsCmd())
	rootCmd.AddCommand(cmd.NewTurnCmd())
	rootCmd.AddCommand(cmd.NewTranscriptCmd())
	rootCmd.AddCommand(cmd.NewSummarizeCmd())
	rootCmd.AddCommand(cmd.NewCleanupCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
