package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/engine"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the changes apply would make",
	Long: `Refresh tracked resources against the cloud and show what apply
would create, update, replace, or destroy.

Examples:
  stratus plan
  stratus plan -f infra/web.yaml --state infra/web.state.json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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
	return nil
}
