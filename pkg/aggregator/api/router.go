package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	// publish route limit per client IP
	PublishRate  rate.Limit
	PublishBurst int
}

// NewRouter builds the aggregator routes. ctx bounds the rate limiter's
// cleanup goroutine.
func (h *Handler) NewRouter(ctx context.Context, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/healthz", h.Health)
	r.Post("/signature", h.SubmitSignature)
	r.Get("/api/v1/tasks/{taskIndex}", h.GetTaskStatus)

	if h.publisher != nil {
		rateLimiter := NewRateLimiter(ctx, cfg.PublishRate, cfg.PublishBurst)
		r.With(rateLimiter.RateLimit).Post("/api/v1/tasks", h.PublishTask)
	}
	return r
}
