package svc

import (
	"context"
	"fmt"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/db"
	"github.com/agentflow/agentflow/internal/llm"
	"github.com/agentflow/agentflow/internal/llm/anthropicapi"
	"github.com/agentflow/agentflow/internal/llm/openaiapi"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/pairing"
	"github.com/agentflow/agentflow/internal/pipeline"
	"github.com/agentflow/agentflow/internal/pricecache"
	"github.com/agentflow/agentflow/internal/prompt"
	"github.com/agentflow/agentflow/internal/routing"
	"github.com/agentflow/agentflow/internal/scheduler"
	"github.com/agentflow/agentflow/internal/skills"
	"github.com/agentflow/agentflow/internal/skills/selfclaw"
	"github.com/agentflow/agentflow/internal/txexec"
	"github.com/agentflow/agentflow/internal/wallet"
)

// ServiceContext holds all shared service dependencies, wired once at
// startup and passed to every handler.
type ServiceContext struct {
	Config    *config.Config
	Store     *db.Store
	Pairing   *pairing.Service
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler

	// Wallet is nil when no chain RPC URL is configured. The pipeline then
	// answers every financial tag with the not-configured text.
	Wallet *wallet.Service
}

// NewServiceContext wires the whole service graph from configuration.
func NewServiceContext(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("svc: open database: %w", err)
	}

	var walletSvc *wallet.Service
	if cfg.Chain.RPCURL != "" {
		walletSvc, err = wallet.New(ctx, cfg.Chain)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("svc: chain client: %w", err)
		}
	} else {
		logging.Warn("svc: no chain RPC configured, wallet operations disabled")
	}

	var prices pricecache.Cache
	if cfg.Cache.Backend == "redis" {
		redisCache, err := pricecache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.Capacity)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("svc: redis cache: %w", err)
		}
		prices = redisCache
	} else {
		prices = pricecache.NewRing(cfg.Cache.Capacity)
	}

	pairingSvc := pairing.NewService(store)
	registry := skills.NewBuiltinRegistry()
	executor := llm.NewExecutor(openaiapi.NewOpenAI(), openaiapi.NewOpenRouter(), anthropicapi.New())

	pipelineCfg := pipeline.Config{
		Store:         store,
		Router:        routing.NewRouter(store, pairingSvc),
		Composer:      prompt.NewComposer(registry),
		Executor:      executor,
		Registry:      registry,
		SelfClaw:      selfclaw.New(cfg.SelfClaw),
		Prices:        prices,
		HistoryWindow: cfg.HistoryWindow,
	}
	if walletSvc != nil {
		pipelineCfg.Wallet = walletSvc
		pipelineCfg.TxExec = txexec.New(walletSvc)
	} else {
		pipelineCfg.TxExec = txexec.New(nil)
	}
	pipe := pipeline.New(pipelineCfg)

	return &ServiceContext{
		Config:    cfg,
		Store:     store,
		Pairing:   pairingSvc,
		Pipeline:  pipe,
		Scheduler: scheduler.New(store, pipe, cfg.SessionRetentionDays),
		Wallet:    walletSvc,
	}, nil
}

// Close releases held resources.
func (s *ServiceContext) Close() error {
	return s.Store.Close()
}
