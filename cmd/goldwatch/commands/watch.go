package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"goldwatch/internal/components/chrono"
	"goldwatch/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var watchCron *string

func init() {
	watchCron = watchCmd.Flags().String("cron", "*/30 * * * *", "Cron schedule for monitoring passes.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--cron <schedule>]",
	Short: "Runs monitoring passes on a cron schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		s := newSetup(cmd.Context())
		defer s.close()

		weights := s.config.TargetWeights
		codes := resolveWorkList(s)

		// one pass at a time, a slow pass never overlaps the next
		var passMu sync.Mutex
		runPass := func() {
			if !passMu.TryLock() {
				slog.Warn("previous pass still running, skipping this schedule")
				return
			}
			defer passMu.Unlock()

			result, err := s.monitor.Run(cmd.Context(), codes, weights)
			if err != nil {
				slog.Error("monitoring pass aborted", "err", err.Error())
				return
			}
			slog.Info(
				"pass complete",
				"checked", len(result.Snapshots),
				"failed", len(result.Failed),
				"newly_available", len(result.NewlyAvailable),
			)
		}

		cronApi := chrono.NewStandardCron(telemetry.SlogAPI{})
		err := cronApi.Cron(*watchCron, runPass)
		if err != nil {
			fatal("failed to schedule monitoring pass", err)
		}

		slog.Info("watching", "cron", *watchCron, "branches", len(codes))
		runPass()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}
		slog.Info("shutting down")
	},
}
