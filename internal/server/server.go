package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/handler"
	"github.com/agentflow/agentflow/internal/logging"
	"github.com/agentflow/agentflow/internal/middleware"
	"github.com/agentflow/agentflow/internal/svc"
)

// Options holds optional server dependencies.
type Options struct {
	SvcCtx *svc.ServiceContext // pre-initialized service context
	Quiet  bool                // suppress startup messages for clean CLI output
}

// Run starts the HTTP server and blocks until the context is cancelled.
func Run(ctx context.Context, cfg *config.Config, opts ...Options) error {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	svcCtx := o.SvcCtx
	if svcCtx == nil {
		var err error
		svcCtx, err = svc.NewServiceContext(ctx, cfg)
		if err != nil {
			return err
		}
		defer svcCtx.Close()
	}

	r := Router(svcCtx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if !o.Quiet {
		fmt.Printf("Server ready at http://localhost:%d\n", cfg.Port)
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Router builds the full route tree. Exposed separately so tests can drive
// it with httptest without binding a port.
func Router(svcCtx *svc.ServiceContext) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	// Owner surfaces: JWT
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWT(svcCtx.Config.JWTSecret))
		r.Post("/api/chat", handler.ChatHandler(svcCtx))
		r.Post("/api/agents/{agentID}/pairing-code", handler.MintPairingCodeHandler(svcCtx))
		r.Delete("/api/agents/{agentID}/pairing-code", handler.RevokePairingCodeHandler(svcCtx))
	})

	// Channel webhooks: per-channel shared secrets
	r.Group(func(r chi.Router) {
		r.Use(middleware.TelegramSecret(svcCtx.Config.TelegramWebhookSecret))
		r.Post("/webhooks/telegram/{botID}", handler.TelegramWebhookHandler(svcCtx))
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerSecret(svcCtx.Config.GatewaySecret))
		r.Post("/webhooks/gateway", handler.GatewayWebhookHandler(svcCtx))
	})

	// Internal surfaces
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerSecret(svcCtx.Config.CronSecret))
		r.Post("/internal/cron/tick", handler.CronTickHandler(svcCtx))
	})

	return r
}
