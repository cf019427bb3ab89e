package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yourorg/fair-web/internal/env"
)

// Config holds everything the server and fairctl read from the environment.
type Config struct {
	Port    int
	AppName string
	// SiteURL is the public origin of this site, used for sitemap fallbacks and canonical links.
	SiteURL string

	API     APIConfig
	Auth    AuthConfig
	Session SessionConfig
	Redis   RedisConfig
	SEO     SEOConfig
	Log     LogConfig

	DatabaseURL     string
	CORSOrigins     []string
	RateLimitPerMin int
}

type APIConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RetryMax  int
	RateLimit float64 // outbound requests per second, 0 disables
}

type AuthConfig struct {
	URL    string
	APIKey string
}

type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type SEOConfig struct {
	SiteID         string
	PublicMetaID   int
	AdminMetaID    int
	Revalidate     time.Duration
	RefreshWorkers int
}

type LogConfig struct {
	Level  string
	JSON   bool
	Fluent FluentConfig
}

type FluentConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

// Load reads an optional .env file and then the process environment.
func Load(envPath ...string) (*Config, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath...)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Println("[config] no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:    env.GetInt("PORT", 4002),
		AppName: env.Get("APP_NAME", "fair-web"),
		SiteURL: strings.TrimRight(env.Get("SITE_URL", "http://localhost:4002"), "/"),
		API: APIConfig{
			BaseURL:   strings.TrimRight(env.Get("API_BASE_URL", ""), "/"),
			Token:     env.Get("API_TOKEN", ""),
			Timeout:   env.GetDuration("API_TIMEOUT", 10*time.Second),
			RetryMax:  env.GetInt("API_RETRY_MAX", 0),
			RateLimit: env.GetFloat("API_RATE_LIMIT", 0),
		},
		Auth: AuthConfig{
			URL:    strings.TrimRight(env.Get("AUTH_URL", ""), "/"),
			APIKey: env.Get("AUTH_API_KEY", env.Get("API_TOKEN", "")),
		},
		Session: SessionConfig{
			Secret:     env.Get("SESSION_SECRET", ""),
			TTL:        env.GetDuration("SESSION_TTL", 12*time.Hour),
			CookieName: env.Get("SESSION_COOKIE", "fair_admin"),
			Secure:     env.GetBool("SESSION_COOKIE_SECURE", true),
		},
		Redis: RedisConfig{
			Addr:     env.Get("REDIS_ADDR", ""),
			Password: env.Get("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
		},
		SEO: SEOConfig{
			SiteID:         env.Get("SEO_SITE_ID", "3"),
			PublicMetaID:   env.GetInt("SEO_PUBLIC_META_ID", 2),
			AdminMetaID:    env.GetInt("SEO_ADMIN_META_ID", 3),
			Revalidate:     env.GetDuration("SITEMAP_REVALIDATE", 24*time.Hour),
			RefreshWorkers: env.GetInt("SITEMAP_REFRESH_WORKERS", 2),
		},
		Log: LogConfig{
			Level: env.Get("LOG_LEVEL", "info"),
			JSON:  env.GetBool("LOG_JSON", false),
			Fluent: FluentConfig{
				Enabled: env.GetBool("FLUENTBIT_ENABLED", false),
				Host:    env.Get("FLUENTBIT_HOST", ""),
				Port:    env.GetInt("FLUENTBIT_PORT", 24224),
				Level:   env.Get("FLUENTBIT_LOG_LEVEL", "info"),
			},
		},
		DatabaseURL:     env.Get("DATABASE_URL", ""),
		CORSOrigins:     env.Split("CORS_ORIGINS"),
		RateLimitPerMin: env.GetInt("RATE_LIMIT_PER_MIN", 300),
	}
	if cfg.Log.Fluent.Enabled && cfg.Log.Fluent.Host == "" {
		log.Println("[config] FLUENTBIT_ENABLED is set without FLUENTBIT_HOST; disabling fluent sink")
		cfg.Log.Fluent.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Token == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}
	if c.API.RetryMax < 0 {
		errs = append(errs, errors.New("API_RETRY_MAX must not be negative"))
	}
	if c.Auth.URL != "" && c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required when AUTH_URL is set"))
	}
	return errors.Join(errs...)
}

// AdminEnabled reports whether the admin console can authenticate anyone.
func (c *Config) AdminEnabled() bool {
	return c.Auth.URL != "" && c.Session.Secret != ""
}
