// Package app wires the client core together. Front ends build one App, call
// Start once and Close on exit.
package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/cache"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/credential"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/gateway"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/review"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
)

type Config struct {
	Gateway     gateway.Config
	Credential  credential.Config
	Session     session.Config
	ReviewEvery int
}

// ConfigFromEnv collects every package's environment config.
func ConfigFromEnv() Config {
	every := review.DefaultEvery
	if v := os.Getenv("REVIEW_PROMPT_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			every = n
		}
	}
	return Config{
		Gateway:     gateway.ConfigFromEnv(),
		Credential:  credential.ConfigFromEnv(),
		Session:     session.ConfigFromEnv(),
		ReviewEvery: every,
	}
}

type App struct {
	Gateway  *gateway.Client
	Store    credential.Store
	Keychain *credential.Keychain
	Session  *session.Service
	Cache    *cache.Cache
	Review   *review.Tracker

	logger     *zap.SugaredLogger
	closeStore func() error
}

// New opens the credential backend and builds the core.
func New(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*App, error) {
	store, closeStore, err := credential.Open(ctx, cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	gw := gateway.New(cfg.Gateway, logger.Named("gateway"))
	keys := credential.NewKeychain(store)
	svc := session.NewService(gw, keys, cfg.Session, logger.Named("session"))
	c := cache.New(svc, gw, logger.Named("cache"))
	svc.AddListener(c)

	logger.Debugw("core assembled", "credential_backend", cfg.Credential.Backend, "base_url", cfg.Gateway.BaseURL)
	return &App{
		Gateway:    gw,
		Store:      store,
		Keychain:   keys,
		Session:    svc,
		Cache:      c,
		Review:     review.NewTracker(store, cfg.ReviewEvery, logger.Named("review")),
		logger:     logger,
		closeStore: closeStore,
	}, nil
}

// StartResult is what the front end needs to pick its first screen.
type StartResult struct {
	State        session.State
	PromptReview bool
}

// Start restores a persisted session and counts the launch. A failing
// launch counter is logged, not returned.
func (a *App) Start(ctx context.Context) (StartResult, error) {
	st, err := a.Session.Restore(ctx)
	if err != nil {
		return StartResult{State: st}, err
	}
	prompt, err := a.Review.RecordLaunch(ctx)
	if err != nil {
		a.logger.Warnw("launch counter", "err", err)
	}
	a.logger.Infow("started", "state", st.String(), "prompt_review", prompt)
	return StartResult{State: st, PromptReview: prompt}, nil
}

// Close ends cache subscriptions and releases the credential backend.
func (a *App) Close() error {
	a.Cache.Close()
	return a.closeStore()
}
