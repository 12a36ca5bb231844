package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/config"
	"github.com/rmaia-dev/lotobot/internal/flow"
	"github.com/rmaia-dev/lotobot/internal/observability"
	"github.com/rmaia-dev/lotobot/internal/orchestrator"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the purchase: login, favorite cart, checkout and payment",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so they override the config
			// file and environment variables.
			for flag, key := range map[string]string{
				"headless":      "browser.headless",
				"user-data-dir": "browser.user_data_dir",
				"item":          "purchase.favorite_item_name",
				"total":         "purchase.expected_total",
				"saved-card":    "payment.saved_card_hint",
				"artifacts-dir": "artifacts.dir",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			prompter, err := flow.NewTerminalPrompter()
			if err != nil {
				return err
			}

			o, err := orchestrator.New(logger, cfg, prompter)
			if err != nil {
				return err
			}

			paymentMethod := cfg.Payment.SavedCardHint
			if !cfg.Payment.UseSavedCard || paymentMethod == "" {
				paymentMethod = observability.MaskCard(cfg.Payment.Number)
			}
			logger.Info("Purchase run starting.",
				zap.String("item", cfg.Purchase.FavoriteItemName),
				zap.String("total", cfg.Purchase.ExpectedTotal),
				zap.String("payment_method", paymentMethod),
				zap.Bool("headless", cfg.Browser.Headless))
			return o.Run(ctx)
		},
	}

	runCmd.Flags().Bool("headless", false, "run the browser without a visible window")
	runCmd.Flags().String("user-data-dir", "", "browser profile directory (keeps the session between runs)")
	runCmd.Flags().String("item", "", "favorite cart name to purchase")
	runCmd.Flags().String("total", "", "expected order total, refused on mismatch")
	runCmd.Flags().String("saved-card", "", "saved card hint, e.g. the masked label or last 4 digits")
	runCmd.Flags().String("artifacts-dir", "", "directory for diagnostic screenshots")

	return runCmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
