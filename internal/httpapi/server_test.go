package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cw35/slackminder/db"
	"github.com/cw35/slackminder/internal/store"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	gdb, err := db.OpenAt(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	st, err := store.New(gdb)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	return st
}

func signedCommandRequest(t *testing.T, now time.Time, form url.Values) *http.Request {
	t.Helper()
	body := form.Encode()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))
	signature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)
	return req
}

func newTestMux(t *testing.T, opts Options) *http.ServeMux {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.SigningSecret == "" {
		opts.SigningSecret = testSigningSecret
	}
	mux := http.NewServeMux()
	RegisterRoutes(mux, opts)
	return mux
}

func TestCommandRejectsBadSignature(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := newTestMux(t, Options{Now: func() time.Time { return now }})

	form := url.Values{"command": {"/slack-minder"}, "user_id": {"U1"}, "text": {"help"}}
	req := signedCommandRequest(t, now, form)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCommandRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := newTestMux(t, Options{Now: func() time.Time { return now }})

	form := url.Values{"command": {"/slack-minder"}, "user_id": {"U1"}, "text": {"help"}}
	req := signedCommandRequest(t, now.Add(-10*time.Minute), form)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for stale timestamp", rec.Code)
	}
}

func TestCommandHelp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := newTestMux(t, Options{Now: func() time.Time { return now }})

	form := url.Values{"command": {"/slack-minder"}, "user_id": {"U1"}, "text": {"help"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/slack-minder hourly") {
		t.Fatalf("body = %q, want usage text", rec.Body.String())
	}
}

func TestCommandSetAndDeleteSchedule(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	mux := newTestMux(t, Options{Store: st, Now: func() time.Time { return now }})

	form := url.Values{"command": {"/slack-minder"}, "user_id": {"U1"}, "text": {"daily"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "daily") {
		t.Fatalf("set: status=%d body=%q", rec.Code, rec.Body.String())
	}

	saved, err := st.GetSchedule(context.Background(), "U1")
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if saved.Cadence != "daily" {
		t.Fatalf("Cadence = %q, want daily", saved.Cadence)
	}

	form.Set("text", "delete")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "deleted") {
		t.Fatalf("delete: status=%d body=%q", rec.Code, rec.Body.String())
	}

	form.Set("text", "delete")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))
	if !strings.Contains(rec.Body.String(), "no reminder schedule") {
		t.Fatalf("second delete body = %q, want not-found wording", rec.Body.String())
	}
}

func TestCommandUnknownSubcommand(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := newTestMux(t, Options{Now: func() time.Time { return now }})

	form := url.Values{"command": {"/slack-minder"}, "user_id": {"U1"}, "text": {"yearly"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))
	if !strings.Contains(rec.Body.String(), "Unknown subcommand") {
		t.Fatalf("body = %q, want invalid-subcommand text", rec.Body.String())
	}
}

func TestCommandUnknownCommandName(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := newTestMux(t, Options{Now: func() time.Time { return now }})

	form := url.Values{"command": {"/other-bot"}, "user_id": {"U1"}, "text": {"help"}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedCommandRequest(t, now, form))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown command", rec.Code)
	}
}

func TestOAuthCallbackStoresToken(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	mux := newTestMux(t, Options{
		Store: st,
		OAuth: OAuthConfig{SuccessURL: "https://example.com/done"},
		Exchange: func(ctx context.Context, code string) (ExchangeResult, error) {
			if code != "auth-code-1" {
				return ExchangeResult{}, fmt.Errorf("unexpected code %q", code)
			}
			return ExchangeResult{TeamID: "T1", AuthedUserID: "U1", UserToken: "xoxp-user"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=auth-code-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 redirect", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://example.com/done" {
		t.Fatalf("Location = %q", got)
	}

	token, err := st.GetUserToken(context.Background(), "U1")
	if err != nil {
		t.Fatalf("GetUserToken() error = %v", err)
	}
	if token.AccessToken != "xoxp-user" {
		t.Fatalf("AccessToken = %q, want xoxp-user", token.AccessToken)
	}
}

func TestOAuthCallbackDenied(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for denied authorization", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, Options{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("body = %q, want ok payload", rec.Body.String())
	}
}
