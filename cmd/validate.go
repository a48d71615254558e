package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Statically check the bundle",
	Long: `Check the bundle file for problems without contacting the cloud:
unknown volume types, malformed CIDR blocks, unresolved security group
references, duplicate names, and the like.

Examples:
  stratus validate
  stratus validate -f infra/web.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	b, err := bundle.Load(bundlePath)
	if err != nil {
		return err
	}

	errs := b.Validate()
	if len(errs) == 0 {
		fmt.Println(ui.OKStyle.Render("✓") + " Bundle is valid.")
		return nil
	}

	for _, e := range errs {
		fmt.Println(ui.BadStyle.Render("✗"), e)
	}
	return fmt.Errorf("bundle %s has %d validation error(s)", bundlePath, len(errs))
}
