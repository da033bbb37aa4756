// Package httpapi serves the bot's inbound HTTP surface: the slash command
// webhook, the OAuth callback, and a health endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cw35/slackminder/internal/reminder"
	"github.com/cw35/slackminder/internal/store"
)

const commandName = "/slack-minder"

const helpText = "Usage:\n" +
	commandName + " hourly - remind me about unreplied mentions every hour\n" +
	commandName + " daily - remind me about unreplied mentions once a day\n" +
	commandName + " weekly - remind me about unreplied mentions once a week\n" +
	commandName + " unread - fetch my unreplied mentions right now\n" +
	commandName + " delete - remove my reminder schedule\n" +
	commandName + " help - show this message\n" +
	"Fetching unreplied mentions can take a while; the result arrives as a direct message."

const invalidText = "Unknown subcommand. Try:\n" +
	commandName + " hourly | daily | weekly - set a reminder schedule\n" +
	commandName + " unread - fetch unreplied mentions now\n" +
	commandName + " delete - remove the schedule\n" +
	commandName + " help - usage"

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// SuccessURL is where the browser lands after a completed authorize flow.
	SuccessURL string
}

type Options struct {
	Logger        *slog.Logger
	Store         *store.Store
	Service       *reminder.Service
	SigningSecret string
	OAuth         OAuthConfig
	// Exchange performs the oauth.v2.access call; wired to slackapi in cmd.
	Exchange ExchangeFunc
	// Now is a clock override for signature verification tests.
	Now func() time.Time
	// ScanTimeout bounds the background scan kicked off by "unread".
	ScanTimeout time.Duration
}

// ExchangeResult is the part of an oauth.v2.access response the callback
// needs to persist.
type ExchangeResult struct {
	TeamID       string
	AuthedUserID string
	UserToken    string
}

type ExchangeFunc func(ctx context.Context, code string) (ExchangeResult, error)

// RegisterRoutes attaches the bot's HTTP handlers to mux.
func RegisterRoutes(mux *http.ServeMux, opts Options) {
	if mux == nil {
		return
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	scanTimeout := opts.ScanTimeout
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Minute
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
		default:
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":   true,
			"time": nowFn().Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := verifySlackSignature(
			opts.SigningSecret,
			r.Header.Get("X-Slack-Request-Timestamp"),
			r.Header.Get("X-Slack-Signature"),
			body, nowFn(),
		); err != nil {
			log.Warn("command_signature_rejected", "error", err.Error())
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		form, err := url.ParseQuery(string(body))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		command := strings.TrimSpace(form.Get("command"))
		userID := strings.TrimSpace(form.Get("user_id"))
		text := strings.ToLower(strings.TrimSpace(form.Get("text")))

		if command != commandName {
			http.Error(w, "unknown command", http.StatusBadRequest)
			return
		}
		if userID == "" {
			http.Error(w, "missing user_id", http.StatusBadRequest)
			return
		}

		reply := handleSubcommand(r.Context(), log, opts, userID, text, scanTimeout)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, reply)
	})

	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if errParam := strings.TrimSpace(r.URL.Query().Get("error")); errParam != "" {
			log.Warn("oauth_callback_denied", "error", errParam)
			http.Error(w, "authorization was denied", http.StatusBadRequest)
			return
		}
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		if opts.Exchange == nil || opts.Store == nil {
			http.Error(w, "oauth is not configured", http.StatusServiceUnavailable)
			return
		}

		res, err := opts.Exchange(r.Context(), code)
		if err != nil {
			log.Warn("oauth_exchange_failed", "error", err.Error())
			http.Error(w, "authorization failed", http.StatusBadGateway)
			return
		}
		if strings.TrimSpace(res.AuthedUserID) == "" || strings.TrimSpace(res.UserToken) == "" {
			log.Warn("oauth_exchange_incomplete")
			http.Error(w, "authorization failed", http.StatusBadGateway)
			return
		}
		if err := opts.Store.SaveUserToken(r.Context(), res.AuthedUserID, res.TeamID, res.UserToken); err != nil {
			log.Warn("oauth_token_save_failed", "user_id", res.AuthedUserID, "error", err.Error())
			http.Error(w, "authorization failed", http.StatusInternalServerError)
			return
		}
		log.Info("oauth_token_saved", "user_id", res.AuthedUserID, "team_id", res.TeamID)

		successURL := strings.TrimSpace(opts.OAuth.SuccessURL)
		if successURL == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = io.WriteString(w, "slackminder is connected. You can close this tab.")
			return
		}
		http.Redirect(w, r, successURL, http.StatusFound)
	})
}

func handleSubcommand(ctx context.Context, log *slog.Logger, opts Options, userID, text string, scanTimeout time.Duration) string {
	switch text {
	case "help", "":
		return helpText

	case "delete":
		if opts.Store == nil {
			return "The schedule store is unavailable right now."
		}
		err := opts.Store.DeleteSchedule(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return "You have no reminder schedule to delete."
		}
		if err != nil {
			log.Warn("command_delete_failed", "user_id", userID, "error", err.Error())
			return "Deleting the reminder failed. Please try again."
		}
		return "Your reminder schedule was deleted."

	case "unread":
		if opts.Service == nil {
			return "Scanning is unavailable right now."
		}
		// The slash command must answer within Slack's 3s window; the scan
		// runs in the background and delivers its result as a DM.
		go func() {
			scanCtx, cancel := context.WithTimeout(context.Background(), scanTimeout)
			defer cancel()
			if _, err := opts.Service.ScanAndRemind(scanCtx, userID); err != nil {
				if errors.Is(err, reminder.ErrScanInProgress) {
					log.Info("command_unread_overlap", "user_id", userID)
					return
				}
				log.Warn("command_unread_failed", "user_id", userID, "error", err.Error())
			}
		}()
		return "Fetching your unreplied mentions... the result will arrive as a direct message."

	case "hourly", "daily", "weekly":
		if opts.Store == nil {
			return "The schedule store is unavailable right now."
		}
		if _, err := opts.Store.UpsertSchedule(ctx, userID, text); err != nil {
			log.Warn("command_schedule_failed", "user_id", userID, "cadence", text, "error", err.Error())
			return "Saving the reminder failed. Please try again."
		}
		return fmt.Sprintf("Reminder set: %s.", text)

	default:
		return invalidText
	}
}
