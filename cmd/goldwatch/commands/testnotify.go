package commands

import (
	"errors"
	"log/slog"

	"goldwatch/internal/notifier/telegram"

	"github.com/spf13/cobra"
)

var errTelegramDisabled = errors.New("set telegram.bot_token in the config or TELEGRAM_BOT_TOKEN in the environment")

func init() {
	rootCmd.AddCommand(testNotifyCmd)
}

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Verifies the Telegram bot connection and sends a sample alert.",
	Run: func(cmd *cobra.Command, args []string) {
		s := newSetup(cmd.Context())
		defer s.close()

		if s.notifier == nil {
			fatal("telegram is not configured", errTelegramDisabled)
		}

		username, err := s.notifier.TestConnection(cmd.Context())
		if err != nil {
			fatal("telegram connection test failed", err)
		}
		slog.Info("telegram bot connected", "username", username)

		sample := []telegram.StockItem{
			{
				BranchCode:  "ASB1",
				BranchName:  "Surabaya 1",
				City:        "Surabaya",
				WeightGrams: 5,
				PriceIdr:    5500000,
				Status:      "Available",
			},
			{
				BranchCode:  "ABDG",
				BranchName:  "Bandung",
				City:        "Bandung",
				WeightGrams: 10,
				PriceIdr:    10800000,
				Status:      "Limited Stock",
			},
		}
		err = s.notifier.SendStockAlert(cmd.Context(), sample)
		if err != nil {
			fatal("failed to send sample alert", err)
		}
		slog.Info("sample alert sent")
	},
}
