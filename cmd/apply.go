package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/config"
	"github.com/vietdv277/stratus/internal/engine"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update the declared resources",
	Long: `Compute a plan and execute it, prompting for confirmation first.
Security groups are created before the instances that reference them.
State is saved after every step, so an interrupted apply can be
resumed by running apply again.

Examples:
  stratus apply
  stratus apply --auto-approve`,
	RunE: runApply,
}

var applyAutoApprove bool

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip the confirmation prompt")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := loadBundle()
	if err != nil {
		return err
	}

	s, err := state.Load(statePath)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, b)
	if err != nil {
		return err
	}

	eng := engine.New(client, b, s, statePath)

	p, err := eng.Plan(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute plan: %w", err)
	}

	fmt.Print(ui.RenderPlan(p))

	if !p.HasChanges() {
		return nil
	}

	if !applyAutoApprove && !config.GetSavedAutoApprove() {
		ok, err := ui.Confirm("Apply these changes?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	result, err := eng.Apply(ctx, p)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	fmt.Println(ui.OKStyle.Render(fmt.Sprintf("✓ Applied %d change(s).", result.Applied)))

	if len(eng.State().Outputs) > 0 {
		fmt.Println()
		ui.PrintOutputs(eng.State().Outputs)
	}

	return nil
}
