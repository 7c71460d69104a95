package cli

import (
	"fmt"
	"path/filepath"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/metrics"
	"github.com/linkhub/linkhub/internal/notify"
	"github.com/linkhub/linkhub/internal/orchestrator"
	"github.com/linkhub/linkhub/internal/providers"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/store"
	"github.com/linkhub/linkhub/internal/syncengine"
	"github.com/linkhub/linkhub/internal/tokenstore"
)

// app holds every wired component behind a command. Commands build one,
// use the orchestrator, and Close it on the way out.
type app struct {
	cfg     *config.Config
	loader  *config.Loader
	logger  *logging.Logger
	metrics *metrics.Metrics
	store   *store.SQLiteStore
	tokens  *tokenstore.SQLiteStore
	orch    *orchestrator.Orchestrator
}

// buildApp loads configuration and wires the full component graph. The
// credential vault lives in its own database file next to the main one so
// it can be backed up and encrypted independently.
func buildApp() (*app, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.LogLevel(cfg.Server.LogLevel)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level), logging.WithService("linkhub"))

	st, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	tokensPath := filepath.Join(filepath.Dir(globalFlags.DBPath), "credentials.db")
	tokens, err := tokenstore.NewSQLiteStore(tokensPath, cfg.TokenStore.EncryptionKey)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	m := metrics.NewMetrics("linkhub")
	states := statetoken.New(cfg.State.Secret)
	engine := syncengine.NewEngine(st, logger)

	deps := providers.Deps{
		Store:       st,
		Tokens:      tokens,
		Engine:      engine,
		Logger:      logger,
		HTTPTimeout: cfg.Sync.HTTPTimeout,
		PageCap:     cfg.Sync.PageCap,
	}
	registry := providers.BuildRegistry(cfg, deps, states)

	var notifier notify.Notifier = notify.LogOnly{Logger: logger}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram, logger)
		if err != nil {
			logger.Warn("telegram notifier unavailable, falling back to log-only", "error", err.Error())
		} else {
			notifier = tg
		}
	}

	return &app{
		cfg:     cfg,
		loader:  loader,
		logger:  logger,
		metrics: m,
		store:   st,
		tokens:  tokens,
		orch:    orchestrator.New(registry, logger, notifier, m),
	}, nil
}

func (a *app) Close() {
	if err := a.tokens.Close(); err != nil {
		a.logger.Error("error closing credential store", "error", err.Error())
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "error", err.Error())
	}
}
