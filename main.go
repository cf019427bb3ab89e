package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/fair-web/fairapi"
	httpapi "github.com/yourorg/fair-web/http"
	httpv1 "github.com/yourorg/fair-web/http/v1"
	"github.com/yourorg/fair-web/internal/auth"
	"github.com/yourorg/fair-web/internal/config"
	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/metrics"
	"github.com/yourorg/fair-web/internal/redisx"
	"github.com/yourorg/fair-web/internal/session"
	"github.com/yourorg/fair-web/internal/sitegen"
	"github.com/yourorg/fair-web/internal/sitemapcache"
	"github.com/yourorg/fair-web/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var extra []slog.Handler
	if cfg.Log.Fluent.Enabled {
		fl, err := logger.NewFluentClient(logger.FluentConfig{Host: cfg.Log.Fluent.Host, Port: cfg.Log.Fluent.Port, TagPrefix: cfg.AppName})
		if err != nil {
			log.Printf("fluent sink disabled: %v", err)
		} else {
			defer fl.Close()
			extra = append(extra, logger.NewFluentHandler(fl, logger.ParseLevel(cfg.Log.Fluent.Level)))
		}
	}
	lg := logger.New(logger.Options{Level: logger.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON, Extra: extra})
	slog.SetDefault(lg)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("fairweb")
	api := fairapi.NewClient(fairapi.Options{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RetryMax:  cfg.API.RetryMax,
		RateLimit: cfg.API.RateLimit,
		Observer:  m,
	})

	var rdb *redisx.Client
	if cfg.Redis.Enabled() {
		rdb = redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		if err := rdb.Ping(ctx); err != nil {
			lg.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
		cancel()
		defer rdb.Close()
	}

	var audit *store.Store
	if cfg.DatabaseURL != "" {
		audit, err = openAudit(rootCtx, cfg.DatabaseURL)
		if err != nil {
			lg.Error("audit log disabled", "err", err)
			audit = nil
		} else {
			defer audit.Close()
		}
	}

	pub := events.NewInMemory(64)
	sitemapOpts := sitemapcache.Options{
		Source:     api,
		SiteURL:    cfg.SiteURL,
		Revalidate: cfg.SEO.Revalidate,
		Workers:    cfg.SEO.RefreshWorkers,
		Logger:     lg.With("component", "sitemapcache"),
	}
	if rdb != nil {
		sitemapOpts.Backend = rdb
	}
	sitemaps := sitemapcache.New(sitemapOpts)
	defer sitemaps.Close()
	go sitemaps.Run(rootCtx, pub)

	views, err := httpapi.NewRenderer()
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	deps := RouterDeps{
		Logger:     lg,
		Metrics:    m,
		RatePerMin: cfg.RateLimitPerMin,
		Public: httpapi.PublicDeps{
			API:      api,
			Views:    views,
			Sitemaps: sitemaps,
			Metrics:  m,
			SEO:      cfg.SEO,
			SiteURL:  cfg.SiteURL,
		},
		Feed: httpv1.FeedDeps{API: api, CORSOrigins: cfg.CORSOrigins},
		Ready: func(ctx context.Context) map[string]string {
			checks := map[string]string{}
			if rdb != nil {
				checks["redis"] = health(rdb.Ping(ctx))
			}
			if audit.Enabled() {
				checks["postgres"] = health(audit.Ping(ctx))
			}
			return checks
		},
	}

	if cfg.AdminEnabled() {
		var sessStore session.Store = session.NewMemoryStore()
		if rdb != nil {
			sessStore = &session.RedisStore{Redis: rdb}
		}
		job := &sitegen.Job{
			Client: api,
			Logger: lg.With("component", "sitegen"),
			Config: sitegen.Config{SiteID: cfg.SEO.SiteID, SiteURL: cfg.SiteURL},
		}
		if rdb != nil {
			job.Lock = rdb
		}
		deps.Admin = &httpapi.AdminDeps{
			API:   api,
			Views: views,
			Sessions: session.NewManager(sessStore, session.Options{
				Secret:     cfg.Session.Secret,
				TTL:        cfg.Session.TTL,
				CookieName: cfg.Session.CookieName,
				Secure:     cfg.Session.Secure,
			}),
			Auth:    auth.NewProvider(cfg.Auth.URL, cfg.Auth.APIKey, cfg.API.Timeout),
			Audit:   audit,
			Metrics: m,
			Pub:     pub,
			Sitegen: job,
			SEO:         cfg.SEO,
			LoginPerMin: 10,
		}
	} else {
		lg.Info("admin console disabled: AUTH_URL and SESSION_SECRET are required")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           BuildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		lg.Info("fair-web listening", "port", cfg.Port, "api", cfg.API.BaseURL, "admin", deps.Admin != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", "err", err)
	}
}

func openAudit(ctx context.Context, dsn string) (*store.Store, error) {
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return st, nil
}

func health(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
