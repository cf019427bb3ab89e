package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/fair-web/http"
	httpv1 "github.com/yourorg/fair-web/http/v1"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/metrics"
)

type RouterDeps struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Public  httpapi.PublicDeps
	Admin   *httpapi.AdminDeps // nil disables the console
	Feed    httpv1.FeedDeps
	// RatePerMin caps public requests per client IP; 0 disables the limit.
	RatePerMin int
	// Ready reports backing-service health for /health.
	Ready func(ctx context.Context) map[string]string
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(d.Logger))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{}
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			status = d.Ready(ctx)
			cancel()
		}
		ok := true
		for _, v := range status {
			if v != "ok" {
				ok = false
			}
		}
		if !ok {
			render.Status(req, http.StatusServiceUnavailable)
		}
		render.JSON(w, req, map[string]any{"ok": ok, "checks": status})
	})
	r.Handle("/assets/*", httpapi.Assets())

	// admin pages are rate limited on login only
	if d.Admin != nil {
		httpapi.RegisterAdmin(r, *d.Admin)
	}

	r.Group(func(r chi.Router) {
		if d.RatePerMin > 0 {
			r.Use(httprate.LimitByIP(d.RatePerMin, time.Minute)) // protect upstream quota
		}
		httpv1.RegisterFeed(r, d.Feed)
		httpapi.RegisterPublic(r, d.Public)
	})
	return r
}
