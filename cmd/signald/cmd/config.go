package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go-signals/internal/config"
)

var configCheckPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate a config file and print the effective settings",
	Long: `Load a configuration file, apply defaults, validate it, and print
the resulting effective configuration as YAML. Without a file it prints
the built-in defaults.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configCheckPath, "config", "f", "", "path to YAML config file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if configCheckPath != "" {
		cfg, err = config.Load(configCheckPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
