package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/internal/ui"
)

var outputCmd = &cobra.Command{
	Use:   "output [name]",
	Short: "Read resolved output values",
	Long: `Print output values resolved by the last apply. With a name, prints
just that value, suitable for shell substitution.

Examples:
  stratus output
  stratus output public_ip
  ssh ec2-user@$(stratus output public_ip)
  stratus output --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOutput,
}

var outputJSON bool

func init() {
	rootCmd.AddCommand(outputCmd)

	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Print outputs as JSON")
}

func runOutput(cmd *cobra.Command, args []string) error {
	s, err := state.Load(statePath)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		value, ok := s.Outputs[args[0]]
		if !ok {
			return fmt.Errorf("output %q not found in state", args[0])
		}
		fmt.Println(value)
		return nil
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s.Outputs)
	}

	ui.PrintOutputs(s.Outputs)
	return nil
}
