package commands

import (
	"log/slog"
	"os"
	"time"

	"goldwatch/internal/monitor"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var checkWeights *[]float64
var checkBranches *[]string
var checkMaxBranches *int
var checkShippingOnly *bool

func init() {
	checkWeights = checkCmd.Flags().Float64Slice("weight", nil, "Weights in grams to report on, e.g. --weight 5 --weight 10. Empty means all.")
	checkBranches = checkCmd.Flags().StringSlice("branches", nil, "Branch codes to check. Empty means the configured or default list.")
	checkMaxBranches = checkCmd.Flags().Int("max-branches", 0, "Cap on the number of branches checked. Zero means no cap.")
	checkShippingOnly = checkCmd.Flags().Bool("shipping-only", false, "Only check branches that can ship orders.")
	rootCmd.AddCommand(checkCmd)
}

func resolveWorkList(s setup) []string {
	if len(*checkBranches) > 0 {
		return *checkBranches
	}
	if len(s.config.Branches) > 0 {
		return s.config.Branches
	}
	codes := monitor.BuildWorkList(s.directory, monitor.WorkListOptions{
		MaxBranches:  *checkMaxBranches,
		ShippingOnly: *checkShippingOnly,
	})
	if len(codes) == 0 {
		return monitor.DefaultBranchCodes()
	}
	return codes
}

var checkCmd = &cobra.Command{
	Use:   "check [--weight <grams>] [--branches <codes>] [--max-branches <n>] [--shipping-only]",
	Short: "Runs one monitoring pass over the branch work list.",
	Run: func(cmd *cobra.Command, args []string) {
		s := newSetup(cmd.Context())
		defer s.close()

		weights := *checkWeights
		if len(weights) == 0 {
			weights = s.config.TargetWeights
		}
		codes := resolveWorkList(s)

		slog.Info("starting check", "branches", len(codes), "weights", weights)
		t1 := time.Now()
		result, err := s.monitor.Run(cmd.Context(), codes, weights)
		if err != nil {
			fatal("monitoring pass aborted", err)
		}
		t2 := time.Now()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Branch", "City", "Weight (g)", "Price (IDR)", "Status"})
		for _, snapshot := range result.Snapshots {
			for _, variant := range snapshot.Variants {
				t.AppendRow(table.Row{
					snapshot.Branch.Code,
					snapshot.Branch.City,
					variant.WeightGrams,
					variant.PriceIdr,
					variant.Availability.String(),
				})
			}
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		slog.Info(
			"check complete",
			"checked", len(result.Snapshots),
			"failed", len(result.Failed),
			"newly_available", len(result.NewlyAvailable),
			"seconds", t2.Sub(t1).Seconds(),
		)
	},
}
