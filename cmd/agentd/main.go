package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "agentd",
		Short: "agentd — the VibePilot workstation agent",
		Long:  "Multiplexes PTY shell sessions, a headless-Chrome remote-control pipeline, and an HTTP tunnel over a message bus to the VibePilot browser UI.",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(attachCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
