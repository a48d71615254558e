package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status and tracked resources",
	Long: `Display the effective profile and region, verify credentials, and
summarize what the state file tracks.

Examples:
  stratus status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, _ := bundle.Load(bundlePath)

	fmt.Println("Stratus Status")
	fmt.Println(ui.MutedStyle.Render("─────────────────────────────────"))
	fmt.Println()

	if _, err := os.Stat(bundlePath); err != nil {
		fmt.Printf("Bundle:   %s\n", ui.MutedStyle.Render(bundlePath+" (missing)"))
	} else {
		fmt.Printf("Bundle:   %s\n", ui.NameStyle.Render(bundlePath))
	}

	if p := resolveProfile(b); p != "" {
		fmt.Printf("Profile:  %s\n", p)
	}
	if r := resolveRegion(b); r != "" {
		fmt.Printf("Region:   %s\n", r)
	}
	fmt.Println()

	fmt.Print("Auth:     ")
	client, err := newClient(ctx, b)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗ Not configured"))
		fmt.Printf("          %s\n", ui.MutedStyle.Render(err.Error()))
		return nil
	}

	identity, err := client.GetCallerIdentity(ctx)
	if err != nil {
		fmt.Println(ui.BadStyle.Render("✗ Not authenticated"))
		fmt.Printf("          %s\n", ui.MutedStyle.Render(err.Error()))
		return nil
	}

	fmt.Println(ui.OKStyle.Render("✓ Authenticated"))
	fmt.Printf("Account:  %s\n", identity.Account)
	fmt.Printf("User:     %s\n", identity.UserID)
	if identity.Arn != "" {
		fmt.Printf("ARN:      %s\n", ui.MutedStyle.Render(identity.Arn))
	}
	fmt.Println()

	s, err := state.Load(statePath)
	if err != nil {
		return err
	}

	ui.PrintResources(s.Resources)
	return nil
}
