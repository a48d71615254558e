package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vietdv277/stratus/internal/aws"
	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/config"
)

var (
	// Global flags
	bundlePath string
	statePath  string
	profile    string
	region     string
)

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Stratus - declarative EC2 provisioning",
	Long: `Stratus reconciles a declarative bundle of EC2 resources against your
AWS account. A bundle declares security groups, instances, and named
outputs; stratus diffs the declaration against what actually exists and
creates, updates, or destroys resources to close the gap.

Typical workflow:
  stratus init               # Scaffold a starter bundle, check credentials
  stratus validate           # Check the bundle without touching the cloud
  stratus plan               # Preview what apply would change
  stratus apply              # Execute the plan
  stratus output public_ip   # Read a resolved output
  stratus destroy            # Tear everything down`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&bundlePath, "file", "f", "stratus.yaml", "Path to the bundle file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "stratus.state.json", "Path to the state file")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region to use")

	// Bind flags to viper
	_ = viper.BindPFlag("file", rootCmd.PersistentFlags().Lookup("file"))
	_ = viper.BindPFlag("state", rootCmd.PersistentFlags().Lookup("state"))
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
}

func initConfig() {
	// Read from environment variables
	viper.SetEnvPrefix("STRATUS")
	viper.AutomaticEnv()

	if v := viper.GetString("file"); v != "" {
		bundlePath = v
	}
	if v := viper.GetString("state"); v != "" {
		statePath = v
	}

	// Priority for profile: --profile flag > AWS_PROFILE env; the bundle's
	// provider block and ~/.stratus.yaml fill in later if both are empty.
	if profile == "" {
		profile = viper.GetString("profile")
	}
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}

	if region == "" {
		region = viper.GetString("region")
	}
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = os.Getenv("AWS_DEFAULT_REGION")
		}
	}
}

// resolveProfile returns the effective AWS profile for a bundle.
// Precedence: flag/env > bundle provider block > saved config.
func resolveProfile(b *bundle.Bundle) string {
	if profile != "" {
		return profile
	}
	if b != nil && b.Provider.Profile != "" {
		return b.Provider.Profile
	}
	return config.GetSavedProfile()
}

// resolveRegion returns the effective AWS region for a bundle.
func resolveRegion(b *bundle.Bundle) string {
	if region != "" {
		return region
	}
	if b != nil && b.Provider.Region != "" {
		return b.Provider.Region
	}
	return config.GetSavedRegion()
}

// newClient builds an AWS client honoring the bundle's provider block.
func newClient(ctx context.Context, b *bundle.Bundle) (*aws.Client, error) {
	client, err := aws.NewClient(
		ctx,
		aws.WithProfile(resolveProfile(b)),
		aws.WithRegion(resolveRegion(b)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client: %w", err)
	}
	return client, nil
}

// loadBundle reads and statically validates the bundle file.
func loadBundle() (*bundle.Bundle, error) {
	b, err := bundle.Load(bundlePath)
	if err != nil {
		return nil, err
	}

	if errs := b.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "  -", e)
		}
		return nil, fmt.Errorf("bundle %s has %d validation error(s)", bundlePath, len(errs))
	}

	return b, nil
}
