package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath *string
var noTelegram *bool
var verbose *bool

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "goldwatch.json5", "Path to the config file.")
	noTelegram = rootCmd.PersistentFlags().Bool("no-telegram", false, "Disable all Telegram notifications.")
	verbose = rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging.")
}

var rootCmd = &cobra.Command{
	Use:   "goldwatch",
	Short: "goldwatch monitors gold stock availability across LogamMulia branches.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if *verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
