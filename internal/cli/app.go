package cli

import (
	"context"
	"fmt"
	"log/slog"

	"atlas/internal/auth/api"
	"atlas/internal/auth/permissions"
	"atlas/internal/auth/session"
	"atlas/internal/auth/token"
	"atlas/internal/platform/config"
	"atlas/internal/platform/logger"
	"atlas/internal/platform/metrics"
	"atlas/internal/ratelimit"
	limitstore "atlas/internal/ratelimit/store"
)

// app wires the client core together for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tokens  *token.Store
	limiter *ratelimit.Limiter
	client  *api.Client
	manager *session.Manager
	monitor *token.Monitor
	checker *permissions.Checker
}

func newApp() (*app, error) {
	return newAppWith(metrics.New())
}

func newAppWith(mets *metrics.Metrics) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithLevel(logger.ParseLevel(cfg.Log.Level))

	var tokenOpts []token.StoreOption
	if cfg.Token.File != "" {
		tokenOpts = append(tokenOpts, token.WithFile(cfg.Token.File))
	}
	tokens := token.NewStore(tokenOpts...)

	var store ratelimit.Store
	if cfg.RateLimit.File != "" {
		store = limitstore.NewFile(cfg.RateLimit.File)
	} else {
		store = limitstore.NewMemory()
	}
	limiter, err := ratelimit.New(store,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(mets),
		ratelimit.WithConfig(ratelimit.Config{
			MaxAttempts:     cfg.RateLimit.MaxAttempts,
			LockoutDuration: cfg.RateLimit.LockoutDuration,
			StorageKey:      cfg.RateLimit.StorageKey,
		}))
	if err != nil {
		return nil, fmt.Errorf("init limiter: %w", err)
	}

	client, err := api.New(cfg.API.BaseURL, tokens, api.WithLogger(log), api.WithMetrics(mets))
	if err != nil {
		return nil, fmt.Errorf("init API client: %w", err)
	}

	manager, err := session.New(client, tokens, session.WithLogger(log), session.WithMetrics(mets))
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}

	monitor := token.NewMonitor(tokens, client.Refresh,
		token.WithMonitorLogger(log),
		token.WithMonitorMetrics(mets),
		token.WithLeeways(cfg.Token.WarningLeeway, cfg.Token.RefreshLeeway))

	return &app{
		cfg:     cfg,
		logger:  log,
		metrics: mets,
		tokens:  tokens,
		limiter: limiter,
		client:  client,
		manager: manager,
		monitor: monitor,
		checker: permissions.NewChecker(manager),
	}, nil
}

// bootstrap resolves the stored token into a session and fails the
// command when no one is signed in.
func (a *app) bootstrap(ctx context.Context) error {
	if err := a.manager.Bootstrap(ctx); err != nil {
		return fmt.Errorf("not signed in: %w", err)
	}
	if a.manager.Snapshot().State != session.StateAuthenticated {
		return fmt.Errorf("not signed in; run \"authctl login\" first")
	}
	return nil
}
