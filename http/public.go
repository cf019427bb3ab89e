package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/canon"
	"github.com/yourorg/fair-web/internal/config"
	"github.com/yourorg/fair-web/internal/feed"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/metrics"
	"github.com/yourorg/fair-web/internal/sitemapcache"
	"github.com/yourorg/fair-web/internal/view"
)

const (
	SectionPageSize = 9
	SearchPageSize  = 12
	DetailPageSize  = 9
	detailWindow    = 5
)

type PublicDeps struct {
	API      *fairapi.Client
	Views    *Renderer
	Sitemaps *sitemapcache.Cache
	Metrics  *metrics.Collector
	SEO      config.SEOConfig
	SiteURL  string
	Now      func() time.Time
}

func (d PublicDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Banner is one "popular service" shortcut on the home page.
type Banner struct {
	Title string
	URL   string
}

var homeBanners = []Banner{
	{Title: "서울시 박람회", URL: view.DetailURL("서울", "서울시")},
	{Title: "웨딩 박람회", URL: typeSearchURL("웨딩")},
	{Title: "허니문 박람회", URL: typeSearchURL("허니문")},
	{Title: "스드메 박람회", URL: typeSearchURL("스드메")},
	{Title: "웨딩홀 박람회", URL: typeSearchURL("웨딩홀")},
}

func typeSearchURL(t string) string { return "/search?" + url.Values{"type": {t}}.Encode() }

type Section struct {
	ID      string
	Heading string
	Cards   []view.Card
	HasMore bool
	NextURL string
	Err     string
	Empty   bool
}

type HomeData struct {
	Banners  []Banner
	Sections []Section
	Err      string
}

type SearchData struct {
	Query     string
	Type      string
	CountLine string
	Cards     []view.Card
	Pager     view.Pager
	Err       string
	NoResults bool
}

type DetailData struct {
	Heading string
	Subtext string
	Cards   []view.Card
	Pager   view.Pager
	Err     string
	Empty   bool
}

type FairData struct {
	Card   view.Card
	Fair   fairapi.Fair
	Status string
}

type ErrorData struct {
	Status  int
	Message string
}

func RegisterPublic(r chi.Router, d PublicDeps) {
	r.Get("/", d.home)
	r.Get("/search", d.search)
	r.Get("/detail", d.detail)
	r.Get("/fairs/{id}", d.fair)
	r.Get("/sitemap.xml", d.sitemapXML)
	r.Get("/robots.txt", d.robots)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		d.renderError(w, req, http.StatusNotFound, "페이지를 찾을 수 없습니다.")
	})
}

func (d PublicDeps) home(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := logger.FromContext(ctx)
	p := d.chrome(req, "")
	data := HomeData{Banners: homeBanners}

	cities, err := d.API.MainCities(ctx)
	if err != nil {
		log.Error("main cities failed", "err", err)
		data.Err = view.MsgLoadFailed
		p.Data = data
		d.Views.Render(w, req, http.StatusOK, "home", p)
		return
	}

	now := d.now()
	pager := feed.New(SectionPageSize, fairapi.MainFeed(d.API))
	for _, c := range cities {
		pager.Reset(feed.Filter{Main: c.Name})
		sec := Section{
			ID:      "city-" + strconv.Itoa(c.ID),
			Heading: c.Name + " 웨딩 박람회",
		}
		if err := pager.LoadNext(ctx); err != nil {
			log.Error("section load failed", "main", c.Name, "err", err)
			sec.Err = view.MsgLoadFailed
			data.Sections = append(data.Sections, sec)
			continue
		}
		snap := pager.Snapshot()
		sec.Cards = view.Cards(snap.Items, now)
		sec.Empty = snap.Empty()
		sec.HasMore = snap.HasMore
		if snap.HasMore {
			sec.NextURL = view.SectionFeedURL(c.Name, "", snap.Page+1)
		}
		data.Sections = append(data.Sections, sec)
	}
	p.Data = data
	d.Views.Render(w, req, http.StatusOK, "home", p)
}

func pageParam(q url.Values) int {
	n, err := strconv.Atoi(q.Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (d PublicDeps) search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	q := req.URL.Query()
	query := canon.Query(q.Get("query"))
	typ := canon.Query(q.Get("type"))
	page := pageParam(q)

	title := "검색 결과"
	if query != "" {
		title = query + " " + title
	}
	p := d.chrome(req, title)
	data := SearchData{Query: query, Type: typ}

	// Neither a query nor a type means there is nothing to search for.
	if query == "" && typ == "" {
		data.CountLine = view.MsgNoResults
		data.NoResults = true
		data.Pager = view.NewPager("/search", q, 1, 1, 0)
		p.Data = data
		d.Views.Render(w, req, http.StatusOK, "search", p)
		return
	}

	res, err := d.API.SearchFairs(ctx, fairapi.NewSearchParams(query, typ, page, SearchPageSize))
	if err != nil {
		logger.FromContext(ctx).Error("search failed", "query", query, "type", typ, "err", err)
		data.Err = view.MsgLoadFailed
		p.Data = data
		d.Views.Render(w, req, http.StatusOK, "search", p)
		return
	}
	if query != "" {
		data.CountLine = fmt.Sprintf("\"%s\"에 대한 검색 결과 %d건", query, res.TotalCount)
	} else {
		data.CountLine = fmt.Sprintf("%s 박람회 %d건", typ, res.TotalCount)
	}
	data.Cards = view.Cards(res.Fairs, d.now())
	data.NoResults = len(data.Cards) == 0
	data.Pager = view.NewPager("/search", q, page, res.TotalPages, 0)
	p.Data = data
	d.Views.Render(w, req, http.StatusOK, "search", p)
}

func (d PublicDeps) detail(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	q := req.URL.Query()
	main := canon.Query(q.Get("main"))
	sub := canon.Query(q.Get("sub"))
	mainName := canon.Query(q.Get("mainName"))
	subName := canon.Query(q.Get("subName"))
	if mainName == "" {
		mainName = main
	}
	if subName == "" {
		subName = sub
	}
	page := pageParam(q)

	p := d.chrome(req, strings.TrimSpace(mainName+" "+subName+" 웨딩 박람회"))
	data := DetailData{
		Heading: mainName + " > " + subName + " 웨딩 박람회",
		Subtext: mainName + "의 " + subName + " 지역에서 열리는 웨딩 박람회 정보입니다.",
	}
	if main == "" || sub == "" {
		data.Heading = "웨딩 박람회"
		data.Subtext = ""
		data.Err = view.MsgMissingCategory
		p.Data = data
		d.Views.Render(w, req, http.StatusBadRequest, "detail", p)
		return
	}

	res, err := d.API.SubCategoryFairs(ctx, fairapi.NewFairsParams(main, sub, "", page, DetailPageSize))
	if err != nil {
		logger.FromContext(ctx).Error("detail listing failed", "main", main, "sub", sub, "err", err)
		data.Err = view.MsgLoadFailed
		p.Data = data
		d.Views.Render(w, req, http.StatusOK, "detail", p)
		return
	}
	data.Cards = view.Cards(res.Fairs, d.now())
	data.Empty = len(data.Cards) == 0
	data.Pager = view.NewPager("/detail", q, page, res.TotalPages, detailWindow)
	p.Data = data
	d.Views.Render(w, req, http.StatusOK, "detail", p)
}

func (d PublicDeps) fair(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id := chi.URLParam(req, "id")
	f, err := d.API.FairByID(ctx, id)
	if err != nil {
		if fairapi.IsNotFound(err) {
			d.renderError(w, req, http.StatusNotFound, "박람회를 찾을 수 없습니다.")
			return
		}
		logger.FromContext(ctx).Error("fair load failed", "id", id, "err", err)
		d.renderError(w, req, http.StatusBadGateway, view.MsgLoadFailed)
		return
	}
	p := d.chrome(req, f.Title)
	if f.Description != "" {
		p.Meta.Description = f.Description
	}
	if f.ImageURL != "" {
		p.Meta.OGImage = f.ImageURL
	}
	p.Meta.OGTitle = f.Title
	p.Meta.OGURL = d.SiteURL + "/fairs/" + url.PathEscape(f.ID)
	card := view.CardFromFair(*f, d.now())
	p.Data = FairData{Card: card, Fair: *f, Status: card.Status.Label()}
	d.Views.Render(w, req, http.StatusOK, "fair", p)
}

func (d PublicDeps) renderError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	p := d.chrome(req, msg)
	p.Data = ErrorData{Status: status, Message: msg}
	d.Views.Render(w, req, status, "error", p)
}

func (d PublicDeps) sitemapXML(w http.ResponseWriter, req *http.Request) {
	doc, status, err := d.Sitemaps.Document(req.Context(), d.SEO.SiteID)
	d.Metrics.ObserveSitemap(string(status))
	if err != nil {
		logger.FromContext(req.Context()).Error("sitemap build failed", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("X-Sitemap-Cache", string(status))
	maxAge := int(d.SEO.Revalidate.Seconds())
	if status == sitemapcache.StatusFallback || maxAge <= 0 {
		maxAge = 60
	}
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	_, _ = w.Write(doc)
}

func (d PublicDeps) robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /admin\n\nSitemap: %s/sitemap.xml\n", d.SiteURL)
}
