package v1

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/canon"
	"github.com/yourorg/fair-web/internal/feed"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/view"
)

const (
	SectionPageSize = 9
	DetailPageSize  = 9
	SearchPageSize  = 12
)

type FeedDeps struct {
	API         *fairapi.Client
	CORSOrigins []string
	Now         func() time.Time
}

// FeedResponse is one continuation page of cards.
type FeedResponse struct {
	Items      []view.Card `json:"items"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages,omitempty"`
	HasMore    bool        `json:"has_more"`
	NextURL    string      `json:"next_url,omitempty"`
}

// RegisterFeed mounts the JSON endpoints the listing pages use to load further pages.
func RegisterFeed(r chi.Router, d FeedDeps) {
	r.Route("/v1", func(r chi.Router) {
		if len(d.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: d.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			}))
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/sections/{main}/fairs", func(w http.ResponseWriter, req *http.Request) {
			main, _ := url.PathUnescape(chi.URLParam(req, "main"))
			f := feed.Filter{Main: canon.Query(main), Type: canon.Query(req.URL.Query().Get("type"))}
			if f.Main == "" {
				badRequest(w, req, "main_required", view.MsgMissingCategory)
				return
			}
			serve(w, req, d, feed.New(SectionPageSize, fairapi.MainFeed(d.API)), f, func(page int) string {
				return view.SectionFeedURL(f.Main, f.Type, page)
			})
		})

		r.Get("/detail/fairs", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			f := feed.Filter{Main: canon.Query(q.Get("main")), Sub: canon.Query(q.Get("sub"))}
			if f.Main == "" || f.Sub == "" {
				badRequest(w, req, "category_required", view.MsgMissingCategory)
				return
			}
			serve(w, req, d, feed.New(DetailPageSize, fairapi.SubFeed(d.API)), f, func(page int) string {
				return view.DetailFeedURL(f.Main, f.Sub, page)
			})
		})

		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			f := feed.Filter{Query: canon.Query(q.Get("query")), Type: canon.Query(q.Get("type"))}
			if f.Query == "" && f.Type == "" {
				render.JSON(w, req, FeedResponse{Items: []view.Card{}, Page: 1})
				return
			}
			serve(w, req, d, feed.New(SearchPageSize, fairapi.SearchFeed(d.API)), f, func(page int) string {
				return view.SearchFeedURL(f.Query, f.Type, page)
			})
		})
	})
}

// serve loads exactly the requested page through a fresh pager.
func serve(w http.ResponseWriter, req *http.Request, d FeedDeps, p *feed.Pager[fairapi.Fair], f feed.Filter, next func(int) string) {
	page := 1
	if n, err := strconv.Atoi(req.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	p.ResetFrom(f, page)
	if err := p.LoadNext(req.Context()); err != nil {
		logger.FromContext(req.Context()).Error("feed page failed", "main", f.Main, "sub", f.Sub, "query", f.Query, "page", page, "err", err)
		render.Status(req, http.StatusBadGateway)
		render.JSON(w, req, map[string]any{"error": "upstream_error", "message": view.MsgLoadFailed})
		return
	}
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	snap := p.Snapshot()
	res := FeedResponse{
		Items:      view.Cards(snap.Items, now),
		Page:       snap.Page,
		TotalPages: snap.TotalPages,
		HasMore:    snap.HasMore,
	}
	if snap.HasMore {
		res.NextURL = next(snap.Page + 1)
	}
	render.JSON(w, req, res)
}

func badRequest(w http.ResponseWriter, req *http.Request, code, msg string) {
	render.Status(req, http.StatusBadRequest)
	render.JSON(w, req, map[string]any{"error": code, "message": msg})
}
