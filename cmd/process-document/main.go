package main

import (
	"os"

	"github.com/kubev2v/doc-processor/internal/cli"
)

func main() {
	if err := cli.NewCmdProcessDocument().Execute(); err != nil {
		os.Exit(1)
	}
}
