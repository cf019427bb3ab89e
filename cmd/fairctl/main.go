// Command fairctl lists fairs and regenerates sitemaps from the command line.
//
//	fairctl fairs -main 서울 [-sub 강남] [-query q] [-type 웨딩] [-max 5] [-json]
//	fairctl sitemap show [-site 3]
//	fairctl sitemap regenerate [-site 3] [-dry-run] [-interval 6h]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/config"
	"github.com/yourorg/fair-web/internal/env"
	"github.com/yourorg/fair-web/internal/feed"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/redisx"
	"github.com/yourorg/fair-web/internal/sitegen"
	"github.com/yourorg/fair-web/internal/sitemap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	api := fairapi.NewClient(fairapi.Options{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RetryMax:  cfg.API.RetryMax,
		RateLimit: cfg.API.RateLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "fairs":
		err = runFairs(ctx, api, os.Args[2:], os.Stdout)
	case "sitemap":
		err = runSitemap(ctx, cfg, api, os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("fairctl %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fairctl fairs|sitemap [flags]")
}

// runFairs drains a listing through the same pager the site uses.
func runFairs(ctx context.Context, api *fairapi.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fairs", flag.ContinueOnError)
	mainRegion := fs.String("main", "", "main region")
	sub := fs.String("sub", "", "sub region (requires -main)")
	query := fs.String("query", "", "search text")
	typ := fs.String("type", "", "fair type")
	size := fs.Int("size", 50, "page size")
	maxPages := fs.Int("max", 0, "stop after this many pages (0 = all)")
	asJSON := fs.Bool("json", false, "print one JSON object per line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var fetch feed.FetchFunc[fairapi.Fair]
	switch {
	case *query != "":
		fetch = fairapi.SearchFeed(api)
	case *mainRegion != "" && *sub != "":
		fetch = fairapi.SubFeed(api)
	case *mainRegion != "":
		fetch = fairapi.MainFeed(api)
	case *typ != "":
		fetch = fairapi.SearchFeed(api)
	default:
		return errors.New("one of -main, -query or -type is required")
	}

	p := feed.New(*size, fetch)
	p.Reset(feed.Filter{Main: *mainRegion, Sub: *sub, Type: *typ, Query: *query})
	fairs, err := p.Drain(ctx, *maxPages)

	if *asJSON {
		enc := json.NewEncoder(out)
		for _, f := range fairs {
			if encErr := enc.Encode(f); encErr != nil {
				return encErr
			}
		}
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tREGION\tSTART\tEND")
		for _, f := range fairs {
			fmt.Fprintf(tw, "%s\t%s\t%s > %s\t%s\t%s\n", f.ID, f.Title, f.Category1, f.Category2, fairapi.DateOnly(f.StartDate), fairapi.DateOnly(f.EndDate))
		}
		if flushErr := tw.Flush(); flushErr != nil {
			return flushErr
		}
	}
	if err != nil {
		return fmt.Errorf("listing stopped after %d fairs: %w", len(fairs), err)
	}
	return nil
}

func runSitemap(ctx context.Context, cfg *config.Config, api *fairapi.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("sitemap: expected show or regenerate")
	}
	fs := flag.NewFlagSet("sitemap "+args[0], flag.ContinueOnError)
	site := fs.String("site", cfg.SEO.SiteID, "site id")
	dryRun := fs.Bool("dry-run", false, "print the document instead of storing it")
	interval := fs.Duration("interval", env.GetDuration("SITEMAP_INTERVAL", 0), "repeat on this interval (0 = once)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "show":
		raw, err := api.SitemapXML(ctx, *site)
		if err != nil {
			return err
		}
		entries, err := sitemap.Parse([]byte(raw), time.Now())
		if err != nil {
			return fmt.Errorf("stored sitemap does not parse: %w", err)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOC\tLASTMOD\tCHANGEFREQ\tPRIORITY")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\n", e.Loc, e.LastMod.Format(time.RFC3339), e.ChangeFreq, e.Priority)
		}
		return tw.Flush()

	case "regenerate":
		lg := logger.New(logger.Options{Level: logger.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON, Writer: os.Stderr})
		job := &sitegen.Job{
			Client: api,
			Logger: lg,
			Config: sitegen.Config{
				SiteID:               *site,
				SiteURL:              cfg.SiteURL,
				PageSize:             env.GetInt("SITEMAP_PAGE_SIZE", 50),
				MaxPagesPerRegion:    env.GetInt("SITEMAP_MAX_PAGES", 20),
				SearchTypes:          env.Split("SITEMAP_SEARCH_TYPES"),
				Interval:             *interval,
				PauseBetweenRequests: env.GetDuration("SITEMAP_PAUSE", 500*time.Millisecond),
				RequestTimeout:       env.GetDuration("SITEMAP_REQUEST_TIMEOUT", 15*time.Second),
				DryRun:               *dryRun,
			},
		}
		if cfg.Redis.Enabled() {
			rc := redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			defer rc.Close()
			job.Lock = rc
		}
		if *interval > 0 {
			return job.Run(ctx)
		}
		res, err := job.RunOnce(ctx)
		if res != nil && *dryRun {
			if _, werr := out.Write(res.XML); werr != nil {
				return werr
			}
		}
		if res != nil {
			fmt.Fprintf(os.Stderr, "entries=%d fairs=%d regions=%d stored=%t\n", res.Entries, res.Fairs, res.Regions, res.Stored)
		}
		return err

	default:
		return fmt.Errorf("sitemap: unknown action %q", args[0])
	}
}
