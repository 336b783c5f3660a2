package main

import (
	"github.com/spf13/cobra"

	"github.com/kubev2v/doc-processor/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "doc-processor",
	Short: "doc-processor converts documents queued on a redis broker.",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cli.NewCmdEnqueue())
	rootCmd.AddCommand(cli.NewCmdStatus())
	rootCmd.AddCommand(cli.NewCmdProcessDocument())
}
