// Package sitegen rebuilds a site's sitemap from the live listing set and stores it upstream.
package sitegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/feed"
	"github.com/yourorg/fair-web/internal/sitemap"
)

// Source is the part of the API client the job needs.
type Source interface {
	AllSubCities(ctx context.Context) ([]fairapi.Category, error)
	MainCategoryFairs(ctx context.Context, p fairapi.FairsParams) (*fairapi.FairsPage, error)
	UpdateSitemapXML(ctx context.Context, siteID, xml string) error
}

type Config struct {
	SiteID            string
	SiteURL           string
	PageSize          int
	MaxPagesPerRegion int
	// SearchTypes get a /search?type= entry each.
	SearchTypes          []string
	Interval             time.Duration
	PauseBetweenRequests time.Duration
	RequestTimeout       time.Duration
	// DryRun builds the document without storing it.
	DryRun bool
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration
}

// Locker serializes regeneration of one site across processes. redisx.Client satisfies it.
type Locker interface {
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// ErrBusy is returned by RunOnce while another run holds the site's lock.
var ErrBusy = errors.New("sitemap regeneration already running")

// DefaultSearchTypes are the fair types promoted on the home page.
var DefaultSearchTypes = []string{"웨딩", "허니문", "스드메", "웨딩홀"}

type Job struct {
	Client Source
	Pub    events.Publisher
	Logger *slog.Logger
	Config Config
	// Lock is optional; without it concurrent runs are not coordinated.
	Lock Locker
	now  func() time.Time
}

type Result struct {
	XML     []byte
	Entries int
	Regions int
	Fairs   int
	Stored  bool
}

func (j *Job) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil sitemap job")
	}
	if j.Client == nil {
		return errors.New("sitemap job missing client")
	}
	if j.Config.SiteID == "" {
		return errors.New("sitemap job requires a site id")
	}
	u, err := url.Parse(j.Config.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("sitemap job requires an absolute site url, got %q", j.Config.SiteURL)
	}
	j.Config.SiteURL = strings.TrimRight(j.Config.SiteURL, "/")
	if j.Config.PageSize <= 0 {
		j.Config.PageSize = 50
	}
	if j.Config.MaxPagesPerRegion <= 0 {
		j.Config.MaxPagesPerRegion = 20
	}
	if j.Config.RequestTimeout <= 0 {
		j.Config.RequestTimeout = 15 * time.Second
	}
	if j.Config.LockTTL <= 0 {
		j.Config.LockTTL = 10 * time.Minute
	}
	if j.Config.SearchTypes == nil {
		j.Config.SearchTypes = DefaultSearchTypes
	}
	if j.now == nil {
		j.now = time.Now
	}
	return nil
}

func (j *Job) Run(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	interval := j.Config.Interval
	if interval <= 0 {
		_, err := j.RunOnce(ctx)
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.log().Info("sitemap job starting", "interval", interval.String(), "site_id", j.Config.SiteID)
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.log().Error("sitemap job initial run failed", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			j.log().Info("sitemap job stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.log().Error("sitemap job iteration failed", "err", err)
			}
		}
	}
}

// RunOnce builds the sitemap and, unless DryRun is set, stores it and publishes a change.
// A region that fails to list is skipped; the error is joined into the result error but
// the document is still stored when at least the region index loaded.
func (j *Job) RunOnce(ctx context.Context) (*Result, error) {
	if err := j.validate(); err != nil {
		return nil, err
	}
	if j.Lock != nil && !j.Config.DryRun {
		release, err := j.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	now := j.now()
	res := &Result{}

	cats, err := j.withTimeout(ctx, func(ctx context.Context) ([]fairapi.Category, error) {
		return j.Client.AllSubCities(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	entries := j.staticEntries(now)
	var joined error
	seen := make(map[string]bool)
	for _, cat := range cats {
		res.Regions++
		for _, sub := range cat.SubCities {
			entries = append(entries, sitemap.Entry{
				Loc:        j.detailURL(cat.Name, sub.Name),
				LastMod:    sitemap.DefaultLastMod(now),
				ChangeFreq: "daily",
				Priority:   0.7,
			})
		}
		fairs, err := j.regionFairs(ctx, cat.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			joined = errors.Join(joined, fmt.Errorf("region %s: %w", cat.Name, err))
		}
		for _, f := range fairs {
			if f.ID == "" || seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			entries = append(entries, j.fairEntry(f, now))
			res.Fairs++
		}
	}

	doc, err := sitemap.Build(entries)
	if err != nil {
		return nil, err
	}
	res.XML = doc
	res.Entries = len(entries)
	if j.Config.DryRun {
		return res, joined
	}

	ctx2, cancel := context.WithTimeout(ctx, j.Config.RequestTimeout)
	err = j.Client.UpdateSitemapXML(ctx2, j.Config.SiteID, string(doc))
	cancel()
	if err != nil {
		return res, errors.Join(joined, fmt.Errorf("store sitemap: %w", err))
	}
	res.Stored = true
	if j.Pub != nil {
		j.Pub.PublishSiteChanged(ctx, events.SiteChanged{SiteID: j.Config.SiteID, What: "sitemap", At: now})
	}
	j.log().Info("sitemap regenerated", "site_id", j.Config.SiteID, "entries", res.Entries, "fairs", res.Fairs, "regions", res.Regions)
	return res, joined
}

func lockKey(siteID string) string { return "sitegen:lock:" + siteID }

func (j *Job) acquire(ctx context.Context) (func(), error) {
	key := lockKey(j.Config.SiteID)
	ok, err := j.Lock.SetNX(ctx, key, uuid.NewString(), j.Config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sitemap lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := j.Lock.Del(ctx, key); err != nil {
			j.log().Warn("release sitemap lock", "site_id", j.Config.SiteID, "err", err)
		}
	}, nil
}

func (j *Job) regionFairs(ctx context.Context, main string) ([]fairapi.Fair, error) {
	pager := feed.New(j.Config.PageSize, func(ctx context.Context, f feed.Filter, page, size int) (feed.Page[fairapi.Fair], error) {
		if page > 1 && j.Config.PauseBetweenRequests > 0 {
			select {
			case <-ctx.Done():
				return feed.Page[fairapi.Fair]{}, ctx.Err()
			case <-time.After(j.Config.PauseBetweenRequests):
			}
		}
		ctx, cancel := context.WithTimeout(ctx, j.Config.RequestTimeout)
		defer cancel()
		p, err := j.Client.MainCategoryFairs(ctx, fairapi.NewFairsParams(f.Main, f.Sub, f.Type, page, size))
		if err != nil {
			return feed.Page[fairapi.Fair]{}, err
		}
		return feed.Page[fairapi.Fair]{Items: p.Fairs, TotalPages: p.TotalPages}, nil
	})
	pager.Reset(feed.Filter{Main: main})
	return pager.Drain(ctx, j.Config.MaxPagesPerRegion)
}

func (j *Job) staticEntries(now time.Time) []sitemap.Entry {
	def := sitemap.DefaultLastMod(now)
	out := []sitemap.Entry{
		{Loc: j.Config.SiteURL, LastMod: def, ChangeFreq: "daily", Priority: 1.0},
	}
	for _, t := range j.Config.SearchTypes {
		out = append(out, sitemap.Entry{
			Loc:        j.Config.SiteURL + "/search?" + url.Values{"type": {t}}.Encode(),
			LastMod:    def,
			ChangeFreq: "daily",
			Priority:   0.6,
		})
	}
	return out
}

func (j *Job) detailURL(main, sub string) string {
	q := url.Values{}
	q.Set("main", main)
	q.Set("sub", sub)
	q.Set("mainName", main)
	q.Set("subName", sub)
	return j.Config.SiteURL + "/detail?" + q.Encode()
}

func (j *Job) fairEntry(f fairapi.Fair, now time.Time) sitemap.Entry {
	lastmod := sitemap.DefaultLastMod(now)
	if t, ok := fairapi.ParseDate(f.UpdatedAt); ok {
		lastmod = t.UTC()
	}
	prio := 0.8
	if end, ok := fairapi.ParseDate(f.EndDate); ok && end.Before(now.AddDate(0, 0, -1)) {
		prio = 0.3
	}
	return sitemap.Entry{
		Loc:        j.Config.SiteURL + "/fairs/" + url.PathEscape(f.ID),
		LastMod:    lastmod,
		ChangeFreq: "weekly",
		Priority:   prio,
	}
}

func (j *Job) withTimeout(ctx context.Context, fn func(context.Context) ([]fairapi.Category, error)) ([]fairapi.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, j.Config.RequestTimeout)
	defer cancel()
	return fn(ctx)
}
