package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/config"
	"github.com/vietdv277/stratus/internal/engine"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/internal/ui"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down every resource tracked in state",
	Long: `Destroy the resources a previous apply created, instances first so
attached security groups can be deleted. Only resources tracked in the
state file are touched.

Examples:
  stratus destroy
  stratus destroy --auto-approve`,
	RunE: runDestroy,
}

var destroyAutoApprove bool

func init() {
	rootCmd.AddCommand(destroyCmd)

	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip the confirmation prompt")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := state.Load(statePath)
	if err != nil {
		return err
	}

	if s.Empty() {
		fmt.Println("Nothing to destroy. State tracks no resources.")
		return nil
	}

	// The bundle is only consulted for its provider block; a bundle that
	// no longer parses must not block teardown.
	b, _ := bundle.Load(bundlePath)

	client, err := newClient(ctx, b)
	if err != nil {
		return err
	}

	ui.PrintResources(s.Resources)
	fmt.Println()

	if !destroyAutoApprove && !config.GetSavedAutoApprove() {
		ok, err := ui.Confirm(ui.DestroyStyle.Render("Destroy all of the above?"))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	eng := engine.New(client, b, s, statePath)

	result, err := eng.Destroy(ctx)
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Println(ui.OKStyle.Render(fmt.Sprintf("✓ Destroyed %d resource(s).", result.Destroyed)))
	return nil
}
