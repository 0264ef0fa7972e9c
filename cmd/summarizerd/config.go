package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aschepis/backscratcher/summarizer/config"
	"github.com/spf13/cobra"
)

var forceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage summarizerd configuration",
	Long: `Manage summarizerd configuration.

Examples:
  summarizerd config init                    # Write defaults to ~/.summarizerd/config.yaml
  summarizerd config init -c ./config.yaml   # Write defaults to another path
  summarizerd config init --force            # Overwrite an existing file`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFlag
		if path == "" {
			path = config.GetServerConfigPath()
		}

		if !forceFlag {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to check %s: %w", path, err)
			}
		}

		if err := config.SaveServerConfig(config.DefaultServerConfig(), path); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}
