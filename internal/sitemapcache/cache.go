// Package sitemapcache serves the public sitemap with stale-while-revalidate semantics.
// Entries stay fresh for the revalidate window; after that the stale copy is served while
// a background worker fetches a new one.
package sitemapcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/redisx"
	"github.com/yourorg/fair-web/internal/refresh"
	"github.com/yourorg/fair-web/internal/sitemap"
)

type Source interface {
	SitemapXML(ctx context.Context, siteID string) (string, error)
}

// Backend stores envelopes; Get must return redisx.ErrMiss for absent keys.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Status string

const (
	StatusFresh    Status = "fresh"
	StatusStale    Status = "stale"
	StatusMiss     Status = "miss"
	StatusFallback Status = "fallback"
)

type Options struct {
	Source  Source
	Backend Backend // nil means in-process memory
	SiteURL string
	// Revalidate is how long a fetched document counts as fresh.
	Revalidate time.Duration
	// Retain is how long a stale document may still be served; defaults to 7x Revalidate.
	Retain  time.Duration
	Workers int
	Logger  *slog.Logger
}

type Cache struct {
	src        Source
	backend    Backend
	siteURL    string
	revalidate time.Duration
	retain     time.Duration
	refresher  *refresh.Refresher
	log        *slog.Logger
	now        func() time.Time

	// gens counts invalidations per site; a fetch that started before the
	// latest one must not write its result back.
	genMu sync.Mutex
	gens  map[string]uint64
}

type envelope struct {
	XML        string    `json:"xml"`
	FetchedAt  time.Time `json:"fetched_at"`
	StaleAfter time.Time `json:"stale_after"`
}

func New(opts Options) *Cache {
	if opts.Revalidate <= 0 {
		opts.Revalidate = 24 * time.Hour
	}
	if opts.Retain <= 0 {
		opts.Retain = 7 * opts.Revalidate
	}
	if opts.Backend == nil {
		opts.Backend = NewMemoryBackend()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Cache{
		src:        opts.Source,
		backend:    opts.Backend,
		siteURL:    opts.SiteURL,
		revalidate: opts.Revalidate,
		retain:     opts.Retain,
		log:        opts.Logger,
		now:        time.Now,
		gens:       make(map[string]uint64),
	}
	c.refresher = refresh.New(64, opts.Workers, func(ctx context.Context, j refresh.Job) {
		if _, err := c.fetch(ctx, j.Key); err != nil {
			c.log.Warn("sitemap refresh failed", "site_id", j.Key, "err", err)
		}
	})
	return c
}

func cacheKey(siteID string) string { return "sitemap:" + siteID }

// Entries returns the parsed sitemap of siteID. Fetch or parse failures never surface:
// the caller gets the single fallback entry and StatusFallback.
func (c *Cache) Entries(ctx context.Context, siteID string) ([]sitemap.Entry, Status) {
	now := c.now()
	if env, ok := c.load(ctx, siteID); ok {
		status := StatusFresh
		if now.After(env.StaleAfter) {
			status = StatusStale
			c.refresher.Enqueue(refresh.Job{Key: siteID})
		}
		if entries, err := sitemap.Parse([]byte(env.XML), now); err == nil {
			return entries, status
		}
	}

	env, err := c.fetch(ctx, siteID)
	if err != nil {
		c.log.Error("sitemap fetch failed", "site_id", siteID, "err", err)
		return sitemap.Fallback(c.siteURL, now), StatusFallback
	}
	entries, err := sitemap.Parse([]byte(env.XML), now)
	if err != nil {
		c.log.Error("stored sitemap does not parse", "site_id", siteID, "err", err)
		return sitemap.Fallback(c.siteURL, now), StatusFallback
	}
	return entries, StatusMiss
}

// Document renders Entries as XML.
func (c *Cache) Document(ctx context.Context, siteID string) ([]byte, Status, error) {
	entries, status := c.Entries(ctx, siteID)
	doc, err := sitemap.Build(entries)
	return doc, status, err
}

// Invalidate drops the cached copy and schedules a refetch.
// Fetches already in flight for siteID are not stored.
func (c *Cache) Invalidate(ctx context.Context, siteID string) {
	c.genMu.Lock()
	c.gens[siteID]++
	err := c.backend.Del(ctx, cacheKey(siteID))
	c.genMu.Unlock()
	if err != nil {
		c.log.Warn("sitemap cache delete failed", "site_id", siteID, "err", err)
	}
	c.refresher.Enqueue(refresh.Job{Key: siteID})
}

// Run invalidates sites as change events arrive, until ctx is done.
func (c *Cache) Run(ctx context.Context, pub events.Publisher) {
	sub := pub.SubscribeSiteChanged()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			if evt.What != "" && evt.What != "sitemap" {
				continue
			}
			c.log.Info("sitemap changed", "site_id", evt.SiteID, "at", evt.At.Format(time.RFC3339))
			c.Invalidate(ctx, evt.SiteID)
		}
	}
}

func (c *Cache) Close() { c.refresher.Close() }

func (c *Cache) load(ctx context.Context, siteID string) (envelope, bool) {
	var env envelope
	val, err := c.backend.Get(ctx, cacheKey(siteID))
	if err != nil {
		if !errors.Is(err, redisx.ErrMiss) {
			c.log.Warn("sitemap cache read failed", "site_id", siteID, "err", err)
		}
		return env, false
	}
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return env, false
	}
	return env, true
}

func (c *Cache) generation(siteID string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gens[siteID]
}

func (c *Cache) fetch(ctx context.Context, siteID string) (envelope, error) {
	gen := c.generation(siteID)
	xml, err := c.src.SitemapXML(ctx, siteID)
	if err != nil {
		return envelope{}, err
	}
	now := c.now()
	env := envelope{XML: xml, FetchedAt: now, StaleAfter: now.Add(c.revalidate)}
	if _, err := sitemap.Parse([]byte(xml), now); err != nil {
		return env, err
	}
	b, _ := json.Marshal(env)
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.gens[siteID] != gen {
		c.log.Debug("sitemap invalidated during fetch, not storing", "site_id", siteID)
		return env, nil
	}
	if err := c.backend.Set(ctx, cacheKey(siteID), string(b), c.retain); err != nil {
		c.log.Warn("sitemap cache write failed", "site_id", siteID, "err", err)
	}
	return env, nil
}

// MemoryBackend is the Backend used without redis.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	val     string
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok || !m.now().Before(it.expires) {
		delete(m.items, key)
		return "", redisx.ErrMiss
	}
	return it.val, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{val: val, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}
