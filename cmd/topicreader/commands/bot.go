package commands

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/xaenox/topic-reader/internal/bot"
	"go.uber.org/zap"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run a Telegram bot that summarizes Discord thread links sent to it.
Requires TELEGRAM_TOKEN (or telegram.token).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Telegram.Token == "" {
				return errors.New("telegram token is not configured: set TELEGRAM_TOKEN or telegram.token")
			}

			b, err := bot.New(a.cfg.Telegram.Token, a.service, a.local, a.cfg.Telegram.ConfirmTimeout, a.logger)
			if err != nil {
				a.logger.Error("Failed to create bot", zap.Error(err))
				return err
			}
			return b.Start(cmd.Context())
		},
	}
}
