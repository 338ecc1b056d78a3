// Package server exposes the HTTP surface: liveness, health, metrics and the
// inbound webhooks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/session"
)

// HealthChecker reports whether an optional dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Config holds router configuration. Nil handlers leave their route
// unregistered.
type Config struct {
	Sessions        session.Store
	Storage         HealthChecker
	MetricsHandler  http.Handler
	CalendarWebhook http.Handler
	TelegramWebhook http.Handler
}

func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ARI bot is running"))
	})
	r.Get("/health", health(cfg))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.CalendarWebhook != nil {
		r.Method(http.MethodPost, "/webhooks/calendar", cfg.CalendarWebhook)
	}
	if cfg.TelegramWebhook != nil {
		r.Method(http.MethodPost, "/telegram/webhook", cfg.TelegramWebhook)
	}

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Storage  string `json:"storage,omitempty"`
}

func health(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		code := http.StatusOK

		if cfg.Sessions != nil {
			n, err := cfg.Sessions.Len(ctx)
			if err != nil {
				logger.Warn("health: session store unavailable", "error", err)
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
			resp.Sessions = n
		}

		if cfg.Storage != nil {
			resp.Storage = "ok"
			if !cfg.Storage.Healthy(ctx) {
				resp.Storage = "unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
