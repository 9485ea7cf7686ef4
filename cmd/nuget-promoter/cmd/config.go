package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/nuget-promoter/internal/config"
)

var errSettingsExist = errors.New("settings file already exists")

// newConfigCommand groups settings helpers.
func newConfigCommand(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage promoter settings",
	}

	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(*configPath); err == nil && !force {
				return fmt.Errorf("%s: %w (use --force to overwrite)", *configPath, errSettingsExist)
			}

			if err := config.Save(*configPath, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", *configPath)

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	configCmd.AddCommand(initCmd)

	return configCmd
}
