// Package servecmd runs the bot: HTTP endpoints plus the reminder scheduler.
package servecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cw35/slackminder/db"
	"github.com/cw35/slackminder/internal/configutil"
	"github.com/cw35/slackminder/internal/httpapi"
	"github.com/cw35/slackminder/internal/reminder"
	"github.com/cw35/slackminder/internal/slackapi"
	"github.com/cw35/slackminder/internal/store"
	"github.com/cw35/slackminder/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the slash-command endpoints and run scheduled reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()

			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or SLACKMINDER_SLACK_BOT_TOKEN)")
			}
			signingSecret := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-signing-secret", "slack.signing_secret"))
			if signingSecret == "" {
				return fmt.Errorf("missing slack.signing_secret (set via --slack-signing-secret or SLACKMINDER_SLACK_SIGNING_SECRET)")
			}
			listen := strings.TrimSpace(configutil.FlagOrViperString(cmd, "listen", "listen"))
			if listen == "" {
				listen = ":8080"
			}
			scanTimeout := configutil.FlagOrViperDuration(cmd, "scan-timeout", "scan.timeout")

			dbCfg := db.DefaultConfig()
			dbCfg.DSN = viper.GetString("db.dsn")
			gdb, err := db.Open(dbCfg)
			if err != nil {
				return err
			}
			st, err := store.New(gdb)
			if err != nil {
				return err
			}

			service, err := reminder.NewService(reminder.Options{
				BotToken: botToken,
				Tokens:   st,
				Logger:   log,
			})
			if err != nil {
				return err
			}

			// Verify the token before accepting traffic.
			botAPI, err := slackapi.New(slackapi.Options{Token: botToken})
			if err != nil {
				return err
			}
			auth, err := botAPI.AuthTest(cmd.Context())
			if err != nil {
				return fmt.Errorf("slack auth.test: %w", err)
			}
			log.Info("slack_authenticated", "team", auth.Team, "bot_user_id", auth.UserID)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			schedCfg := scheduler.DefaultConfig()
			schedCfg.Enabled = viper.GetBool("scheduler.enabled")
			schedCfg.Tick = viper.GetDuration("scheduler.tick")
			schedCfg.Concurrency = viper.GetInt("scheduler.concurrency")
			schedCfg.RunTimeout = scanTimeout
			sched, err := scheduler.New(gdb, service, schedCfg, log)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}

			oauthCfg := httpapi.OAuthConfig{
				ClientID:     viper.GetString("slack.client_id"),
				ClientSecret: viper.GetString("slack.client_secret"),
				RedirectURI:  viper.GetString("slack.redirect_uri"),
				SuccessURL:   viper.GetString("slack.oauth_success_url"),
			}
			mux := http.NewServeMux()
			httpapi.RegisterRoutes(mux, httpapi.Options{
				Logger:        log,
				Store:         st,
				Service:       service,
				SigningSecret: signingSecret,
				OAuth:         oauthCfg,
				ScanTimeout:   scanTimeout,
				Exchange: func(ctx context.Context, code string) (httpapi.ExchangeResult, error) {
					access, err := botAPI.ExchangeOAuthCode(ctx, oauthCfg.ClientID, oauthCfg.ClientSecret, code, oauthCfg.RedirectURI)
					if err != nil {
						return httpapi.ExchangeResult{}, err
					}
					if access.AuthedUserID == "" || access.AuthedUserToken == "" {
						return httpapi.ExchangeResult{}, fmt.Errorf("oauth exchange returned no user token")
					}
					return httpapi.ExchangeResult{
						TeamID:       access.TeamID,
						AuthedUserID: access.AuthedUserID,
						UserToken:    access.AuthedUserToken,
					}, nil
				},
			})

			server := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("http_listen", "addr", listen)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
			sched.Wait()
			log.Info("serve_stopped")
			return nil
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...)")
	cmd.Flags().String("slack-signing-secret", "", "Slack app signing secret")
	cmd.Flags().String("listen", "", "HTTP listen address")
	cmd.Flags().Duration("scan-timeout", 0, "per-scan timeout (default from scan.timeout)")
	return cmd
}
