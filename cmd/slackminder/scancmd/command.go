// Package scancmd runs one scan+remind cycle from the command line.
package scancmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cw35/slackminder/db"
	"github.com/cw35/slackminder/internal/configutil"
	"github.com/cw35/slackminder/internal/reminder"
	"github.com/cw35/slackminder/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for a user's unreplied mentions and send the reminder now",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()

			userID := strings.TrimSpace(configutil.FlagOrViperString(cmd, "user", ""))
			if userID == "" {
				return fmt.Errorf("missing --user")
			}
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or SLACKMINDER_SLACK_BOT_TOKEN)")
			}

			opts := reminder.Options{BotToken: botToken, Logger: log}

			// The token store is optional here: without a database the scan
			// simply runs on the bot token.
			dbCfg := db.DefaultConfig()
			dbCfg.DSN = viper.GetString("db.dsn")
			if gdb, err := db.Open(dbCfg); err != nil {
				log.Warn("db_unavailable", "error", err.Error())
			} else if st, err := store.New(gdb); err == nil {
				opts.Tokens = st
			}

			service, err := reminder.NewService(opts)
			if err != nil {
				return err
			}
			count, err := service.ScanAndRemind(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reminder sent to %s (%d unreplied mention(s))\n", userID, count)
			return nil
		},
	}

	cmd.Flags().String("user", "", "Slack user ID to scan for (e.g. U0123456789)")
	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...)")
	return cmd
}
