package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var branchesShippingOnly *bool

func init() {
	branchesShippingOnly = branchesCmd.Flags().Bool("shipping-only", false, "Only list branches that can ship orders.")
	rootCmd.AddCommand(branchesCmd)
}

var branchesCmd = &cobra.Command{
	Use:   "branches [--shipping-only]",
	Short: "Lists every branch in the location directory.",
	Run: func(cmd *cobra.Command, args []string) {
		s := newSetup(cmd.Context())
		defer s.close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Name", "City", "Type", "Ships"})

		for _, branch := range s.directory.Branches() {
			if *branchesShippingOnly && !branch.CanShip {
				continue
			}
			ships := "no"
			if branch.CanShip {
				ships = "yes"
			}
			t.AppendRow(table.Row{branch.Code, branch.Name, branch.City, branch.Type.String(), ships})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
