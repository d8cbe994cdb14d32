package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibepilot/agentd/internal/config"
)

func initCmd() *cobra.Command {
	var cfgPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config document",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists; pass --force to overwrite", path)
				}
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to write the config document (default ~/.agentd/config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
