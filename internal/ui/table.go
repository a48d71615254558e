package ui

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/vietdv277/stratus/internal/state"
)

const maxCellWidth = 50

// PrintOutputs prints resolved output values as a styled table.
func PrintOutputs(outputs map[string]string) {
	if len(outputs) == 0 {
		fmt.Println("No outputs recorded. Run apply first.")
		return
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Output", "Value")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	tbl.WithWriter(os.Stdout)

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tbl.AddRow(name, padRight(outputs[name], maxCellWidth))
	}

	tbl.Print()
}

// PrintResources prints the tracked resources as a styled table.
func PrintResources(resources []state.Resource) {
	if len(resources) == 0 {
		fmt.Println("No resources tracked in state.")
		return
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Kind", "Name", "ID")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	tbl.WithWriter(os.Stdout)

	for _, r := range resources {
		tbl.AddRow(r.Kind, r.Name, r.ID)
	}

	tbl.Print()
	fmt.Printf("\nTotal: %d resources\n", len(resources))
}
