package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/config"
	"github.com/vietdv277/stratus/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show saved CLI defaults",
	Long: `Show the defaults saved in ~/.stratus.yaml. Flags, environment
variables, and the bundle's provider block all take precedence over
saved defaults.

Examples:
  stratus config
  stratus config set profile sandbox
  stratus config set region us-east-1
  stratus config set auto-approve true`,
	RunE: runConfig,
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile|region|auto-approve> <value>",
	Short: "Save a default profile, region, or auto-approve setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Config file: %s\n", ui.MutedStyle.Render(config.GetConfigPath()))
	if cfg.AWSProfile == "" && cfg.AWSRegion == "" && !cfg.AutoApprove {
		fmt.Println("No defaults saved.")
		return nil
	}
	if cfg.AWSProfile != "" {
		fmt.Printf("Profile:      %s\n", cfg.AWSProfile)
	}
	if cfg.AWSRegion != "" {
		fmt.Printf("Region:       %s\n", cfg.AWSRegion)
	}
	if cfg.AutoApprove {
		fmt.Printf("Auto-approve: true\n")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	switch key {
	case "profile":
		cfg.AWSProfile = value
	case "region":
		cfg.AWSRegion = value
	case "auto-approve":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto-approve must be true or false, got %q", value)
		}
		cfg.AutoApprove = enabled
	default:
		return fmt.Errorf("unknown config key %q (expected profile, region, or auto-approve)", key)
	}

	if err := config.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Println(ui.OKStyle.Render("✓") + " Saved " + key + " to " + config.GetConfigPath())
	return nil
}
