// Package bootstrap wires configuration into the services shared by the API
// server and the job worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/agent-platform/internal/agent"
	"github.com/suPer8Hu/agent-platform/internal/ai"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/config"
	"github.com/suPer8Hu/agent-platform/internal/db"
	"github.com/suPer8Hu/agent-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/agent-platform/internal/store/redisstore"
	"gorm.io/gorm"
)

type App struct {
	Cfg       config.Config
	Log       zerolog.Logger
	DB        *gorm.DB
	Repo      *chat.Repo
	Chat      *chat.Service
	Publisher *rabbitmq.Publisher

	closers []func() error
}

// ProviderRegistry registers every supported model backend with its
// configured model.
func ProviderRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", cfg.OpenRouterModel, func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is required")
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("gemini", cfg.GeminiModel, func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required")
		}
		return ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, model)
	})
	return reg
}

// New opens storage, builds the agents and the chat service. With
// withPublisher and RABBIT_URL set, async jobs are enabled.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, withPublisher bool) (_ *App, err error) {
	defaultAgent, err := agent.ParseKind(cfg.DefaultAgentType)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_AGENT_TYPE: %w", err)
	}

	app := &App{Cfg: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	app.DB = gdb
	if sqlDB, derr := gdb.DB(); derr == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	app.Repo = chat.NewRepo(gdb)
	if err := app.Repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	backend, err := ProviderRegistry(cfg).Open(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	if c, ok := backend.Provider.(io.Closer); ok {
		app.closers = append(app.closers, c.Close)
	}

	agents, err := agent.NewRegistry(
		agent.NewBankSupportAgent(backend.Provider, backend.Name, backend.Model, agent.NewSimulatedBank()),
	)
	if err != nil {
		return nil, err
	}

	var locker chat.Locker = chat.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, rdb.Close)
		locker = redisstore.NewLocker(rdb, cfg.ThreadLockTTL, log)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis thread locks")
	}

	opts := chat.Options{
		ContextWindowSize: cfg.ChatContextWindowSize,
		DefaultAgent:      defaultAgent,
		Locker:            locker,
		Logger:            log,
	}
	if withPublisher && cfg.AsyncJobsEnabled() {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, rabbitmq.NewTopology(cfg.RabbitQueue))
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		app.Publisher = pub
		app.closers = append(app.closers, pub.Close)
		opts.Publisher = pub
	}

	app.Chat = chat.NewService(app.Repo, agents, opts)
	log.Info().
		Str("provider", backend.Name).
		Str("model", backend.Model).
		Str("db", cfg.DBDriver).
		Bool("async_jobs", opts.Publisher != nil).
		Msg("services ready")
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
