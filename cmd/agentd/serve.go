package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibepilot/agentd/internal/config"
	"github.com/vibepilot/agentd/internal/daemon"
)

func serveCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}

			d, err := daemon.New(path)
			if err != nil {
				return fmt.Errorf("construct daemon: %w", err)
			}

			return d.Run(context.Background())
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config document (default ~/.agentd/config.yaml)")
	return cmd
}
