// Package reminder wires the mention engine to tokens, transport construction,
// and dispatch: one ScanAndRemind call is one full scan → compose → send cycle.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cw35/slackminder/internal/mention"
	"github.com/cw35/slackminder/internal/slackapi"
	"github.com/cw35/slackminder/internal/store"
)

// ErrScanInProgress is returned when a scan for the same user is already
// running in this process. Overlapping scheduler and slash-command invocations
// would otherwise send duplicate reminders.
var ErrScanInProgress = errors.New("scan already in progress for user")

// Transport is everything one scan+remind cycle needs from the workspace API.
type Transport interface {
	mention.Conversations
	mention.Links
	mention.Poster
}

// TransportFactory builds a transport bound to a token. The service constructs
// a fresh transport per call so per-user OAuth tokens substitute cleanly.
type TransportFactory func(token string) (Transport, error)

type Options struct {
	// BotToken is the workspace bot token, used when no user token is stored.
	BotToken string
	// Tokens is optional; without it every scan runs on the bot token.
	Tokens *store.Store
	// Factory defaults to a slackapi client factory.
	Factory TransportFactory
	Logger  *slog.Logger
}

type Service struct {
	botToken string
	tokens   *store.Store
	factory  TransportFactory
	log      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewService(opts Options) (*Service, error) {
	botToken := strings.TrimSpace(opts.BotToken)
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	factory := opts.Factory
	if factory == nil {
		factory = func(token string) (Transport, error) {
			return slackapi.New(slackapi.Options{Token: token})
		}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		botToken: botToken,
		tokens:   opts.Tokens,
		factory:  factory,
		log:      log,
		inFlight: make(map[string]bool),
	}, nil
}

// ScanAndRemind performs one scan for userID and dispatches the resulting
// reminder to them, including the "all caught up" payload when nothing is
// pending. It returns the number of unreplied mentions found. No reminder is
// sent when the scan itself fails.
func (s *Service) ScanAndRemind(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	if !s.acquire(userID) {
		return 0, fmt.Errorf("%w: %s", ErrScanInProgress, userID)
	}
	defer s.release(userID)

	transport, err := s.factory(s.resolveToken(ctx, userID))
	if err != nil {
		return 0, fmt.Errorf("build transport: %w", err)
	}

	mentions, err := mention.Scan(ctx, transport, s.log, userID)
	if err != nil {
		return 0, fmt.Errorf("scan mentions: %w", err)
	}

	payload := mention.Compose(ctx, transport, s.log, userID, mentions)
	if err := mention.Dispatch(ctx, transport, payload); err != nil {
		return len(mentions), err
	}
	s.log.Info("reminder_sent", "user_id", userID, "mentions", len(mentions))
	return len(mentions), nil
}

func (s *Service) resolveToken(ctx context.Context, userID string) string {
	if s.tokens == nil {
		return s.botToken
	}
	token, err := s.tokens.GetUserToken(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.botToken
	}
	if err != nil {
		s.log.Warn("user_token_lookup_failed", "user_id", userID, "error", err.Error())
		return s.botToken
	}
	return token.AccessToken
}

func (s *Service) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	delete(s.inFlight, userID)
	s.mu.Unlock()
}
