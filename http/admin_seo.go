package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/seo"
	"github.com/yourorg/fair-web/internal/sitemap"
	"github.com/yourorg/fair-web/internal/view"
)

const (
	msgMetaLoadFailed     = "메타태그 정보를 불러오지 못했습니다."
	msgMetaSaved          = "메타태그 정보가 저장되었습니다."
	msgSaveFailed         = "저장에 실패했습니다."
	msgSitesFailed        = "사이트 목록을 불러오지 못했습니다."
	msgSitemapLoadFailed  = "사이트맵을 불러오지 못했습니다."
	msgSitemapSaved       = "사이트맵이 저장되었습니다."
	msgSitemapSaveFailed  = "사이트맵 저장에 실패했습니다: "
	msgSitemapRegenerated = "사이트맵이 다시 생성되었습니다."
	msgSitemapRegenFailed = "사이트맵 생성에 실패했습니다: "
	msgJSONValid          = "유효한 JSON 형식입니다."
	msgJSONInvalid        = "유효하지 않은 JSON 형식입니다. 다시 확인해주세요."
	msgJSONInvalidSave    = "유효하지 않은 JSON 형식입니다. 저장하기 전에 JSON 유효성을 확인해주세요."
	msgJSONNotLD          = "JSON-LD 형식이 아닙니다 (@context와 @type 또는 @graph가 필요합니다): "
	msgStructuredSaved    = "구조화 데이터가 저장되었습니다."
	msgStructuredFailed   = "구조화 데이터 저장 중 오류가 발생했습니다: "
	msgConsoleSaved       = "서치 콘솔 설정이 저장되었습니다."
	msgConsoleFailed      = "저장 중 오류가 발생했습니다."
)

func (d AdminDeps) publish(req *http.Request, siteID, what string) {
	if d.Pub == nil {
		return
	}
	d.Pub.PublishSiteChanged(req.Context(), events.SiteChanged{SiteID: siteID, What: what, At: time.Now()})
}

// savedRedirect reloads a page after a successful save; the flag turns into a flash.
func savedRedirect(w http.ResponseWriter, req *http.Request, path string, q url.Values) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("saved", "1")
	http.Redirect(w, req, path+"?"+q.Encode(), http.StatusSeeOther)
}

type metaData struct {
	Meta fairapi.MetaTags
	Err  string
}

func (d AdminDeps) metaPage(w http.ResponseWriter, req *http.Request) {
	p := d.page(req, "메타 태그", nil)
	m, err := d.API.MetaTags(req.Context(), d.SEO.AdminMetaID)
	if err != nil {
		logger.FromContext(req.Context()).Error("meta tags load failed", "id", d.SEO.AdminMetaID, "err", err)
		p.Data = metaData{Err: msgMetaLoadFailed}
	} else {
		p.Data = metaData{Meta: *m}
	}
	if req.URL.Query().Get("saved") != "" {
		p.Flash = msgMetaSaved
	}
	d.Views.Render(w, req, http.StatusOK, "admin_meta", p)
}

func (d AdminDeps) saveMeta(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	v := func(k string) string { return strings.TrimSpace(req.PostForm.Get(k)) }

	edit := func(m *fairapi.MetaTags) {
		m.MetaTitle = v("meta_title")
		m.MetaDescription = v("meta_description")
		m.Keywords = v("keywords")
		m.OGTitle = v("og_title")
		m.OGDescription = v("og_description")
		m.OGImage = v("og_image")
		m.OGURL = v("og_url")
	}
	fail := func(m fairapi.MetaTags, alert string) {
		p := d.page(req, "메타 태그", metaData{Meta: m})
		p.Alert = alert
		d.Views.Render(w, req, http.StatusBadGateway, "admin_meta", p)
	}

	// start from the stored record so fields this form does not edit survive the PUT
	m, err := d.API.MetaTags(ctx, d.SEO.AdminMetaID)
	if err != nil {
		d.record(req, w, "meta.update", strconv.Itoa(d.SEO.AdminMetaID), err, nil)
		posted := fairapi.MetaTags{}
		edit(&posted)
		fail(posted, msgMetaLoadFailed)
		return
	}
	edit(m)

	_, err = d.API.UpdateMetaTags(ctx, d.SEO.AdminMetaID, *m)
	d.record(req, w, "meta.update", strconv.Itoa(d.SEO.AdminMetaID), err, nil)
	if err != nil {
		fail(*m, msgSaveFailed)
		return
	}
	d.publish(req, d.SEO.SiteID, "meta")
	savedRedirect(w, req, "/admin/seo/meta", nil)
}

type siteEditorData struct {
	Sites    []fairapi.Site
	SiteID   string
	SitesErr string
	LoadErr  string
	XML      string
	JSON     string
	Valid    string
}

// sites loads the site list and picks the requested site, the configured one, or the
// first one, in that order.
func (d AdminDeps) sites(req *http.Request, want string) siteEditorData {
	data := siteEditorData{SiteID: want}
	sites, err := d.API.Sites(req.Context())
	if err != nil {
		logger.FromContext(req.Context()).Error("sites load failed", "err", err)
		data.SitesErr = msgSitesFailed
		if data.SiteID == "" {
			data.SiteID = d.SEO.SiteID
		}
		return data
	}
	data.Sites = sites
	if data.SiteID != "" && findSite(sites, data.SiteID) != nil {
		return data
	}
	data.SiteID = ""
	if findSite(sites, d.SEO.SiteID) != nil {
		data.SiteID = d.SEO.SiteID
	} else if len(sites) > 0 {
		data.SiteID = sites[0].SiteID()
	}
	return data
}

func findSite(sites []fairapi.Site, id string) *fairapi.Site {
	for i := range sites {
		if sites[i].SiteID() == id {
			return &sites[i]
		}
	}
	return nil
}

func (d AdminDeps) sitemapPage(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	data := d.sites(req, q.Get("site"))
	if data.SiteID != "" {
		xml, err := d.API.SitemapXML(req.Context(), data.SiteID)
		if err != nil {
			logger.FromContext(req.Context()).Error("sitemap load failed", "site_id", data.SiteID, "err", err)
			data.LoadErr = msgSitemapLoadFailed
		}
		data.XML = xml
	}
	p := d.page(req, "사이트맵", data)
	switch q.Get("saved") {
	case "":
	case "regenerated":
		p.Flash = msgSitemapRegenerated
	default:
		p.Flash = msgSitemapSaved
	}
	d.Views.Render(w, req, http.StatusOK, "admin_sitemap", p)
}

// saveSitemap refuses XML that does not parse as a urlset before anything is sent.
func (d AdminDeps) saveSitemap(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	siteID := strings.TrimSpace(req.PostForm.Get("site"))
	doc := strings.TrimSpace(req.PostForm.Get("sitemap_xml"))

	fail := func(status int, err error) {
		data := d.sites(req, siteID)
		data.XML = doc
		p := d.page(req, "사이트맵", data)
		p.Alert = msgSitemapSaveFailed + err.Error()
		d.Views.Render(w, req, status, "admin_sitemap", p)
	}
	if siteID == "" {
		fail(http.StatusBadRequest, errors.New("site is required"))
		return
	}
	if err := sitemap.Validate(doc); err != nil {
		fail(http.StatusUnprocessableEntity, err)
		return
	}
	err := d.API.UpdateSitemapXML(req.Context(), siteID, doc)
	d.record(req, w, "sitemap.update", siteID, err, nil)
	if err != nil {
		fail(http.StatusBadGateway, err)
		return
	}
	d.publish(req, siteID, "sitemap")
	savedRedirect(w, req, "/admin/seo/sitemap", url.Values{"site": {siteID}})
}

func (d AdminDeps) regenerateSitemap(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	data := d.sites(req, strings.TrimSpace(req.PostForm.Get("site")))
	fail := func(err error) {
		p := d.page(req, "사이트맵", data)
		p.Alert = msgSitemapRegenFailed + err.Error()
		d.Views.Render(w, req, http.StatusBadGateway, "admin_sitemap", p)
	}
	if d.Sitegen == nil {
		fail(errors.New("sitemap generation is not configured"))
		return
	}
	if data.SiteID == "" {
		fail(errors.New("site is required"))
		return
	}

	job := *d.Sitegen
	job.Config.SiteID = data.SiteID
	job.Config.DryRun = false
	job.Pub = d.Pub
	if s := findSite(data.Sites, data.SiteID); s != nil && s.URL != "" {
		job.Config.SiteURL = s.URL
	}
	res, err := job.RunOnce(ctx)
	stored := res != nil && res.Stored
	detail := map[string]any{}
	if res != nil {
		detail["entries"], detail["fairs"], detail["regions"] = res.Entries, res.Fairs, res.Regions
	}
	if !stored {
		if err == nil {
			err = errors.New("sitemap was not stored")
		}
		d.record(req, w, "sitemap.regenerate", data.SiteID, err, detail)
		fail(err)
		return
	}
	if err != nil {
		// stored with some regions missing
		detail["partial"] = err.Error()
		logger.FromContext(ctx).Warn("sitemap regenerated with errors", "err", err)
	}
	d.record(req, w, "sitemap.regenerate", data.SiteID, nil, detail)
	http.Redirect(w, req, "/admin/seo/sitemap?"+url.Values{"site": {data.SiteID}, "saved": {"regenerated"}}.Encode(), http.StatusSeeOther)
}

func (d AdminDeps) structuredPage(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	data := d.sites(req, q.Get("site"))
	if s := findSite(data.Sites, data.SiteID); s != nil && s.StructuredData != nil {
		data.JSON = seo.Pretty(*s.StructuredData)
	}
	p := d.page(req, "구조화 데이터", data)
	if q.Get("saved") != "" {
		p.Flash = msgStructuredSaved
	}
	d.Views.Render(w, req, http.StatusOK, "admin_structured", p)
}

// saveStructured handles both the validate button and the save button.
func (d AdminDeps) saveStructured(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	siteID := strings.TrimSpace(req.PostForm.Get("site"))
	text := req.PostForm.Get("structured_data")
	saving := req.PostForm.Get("action") == "save"

	render := func(status int, alert, valid string) {
		data := d.sites(req, siteID)
		data.JSON = text
		data.Valid = valid
		p := d.page(req, "구조화 데이터", data)
		p.Alert = alert
		d.Views.Render(w, req, status, "admin_structured", p)
	}

	compact, err := seo.ValidateJSONLD([]byte(text))
	if err != nil {
		msg := msgJSONInvalid
		if saving {
			msg = msgJSONInvalidSave
		}
		if errors.Is(err, seo.ErrSchema) {
			msg = msgJSONNotLD + err.Error()
		}
		render(http.StatusUnprocessableEntity, msg, "")
		return
	}
	if !saving {
		text = seo.Pretty(string(compact))
		render(http.StatusOK, "", msgJSONValid)
		return
	}
	if siteID == "" {
		render(http.StatusBadRequest, msgStructuredFailed+"site is required", "")
		return
	}
	err = d.API.UpdateStructuredData(req.Context(), siteID, compact)
	d.record(req, w, "structured_data.update", siteID, err, nil)
	if err != nil {
		render(http.StatusBadGateway, msgStructuredFailed+err.Error(), "")
		return
	}
	d.publish(req, siteID, "structured_data")
	savedRedirect(w, req, "/admin/seo/structured-data", url.Values{"site": {siteID}})
}

type consoleData struct {
	Google string
	Naver  string
	Err    string
}

// The verification codes live in the public meta-tag record so the public layout
// renders them.
func (d AdminDeps) consolePage(w http.ResponseWriter, req *http.Request) {
	p := d.page(req, "서치 콘솔", nil)
	m, err := d.API.MetaTags(req.Context(), d.SEO.PublicMetaID)
	if err != nil {
		logger.FromContext(req.Context()).Error("verification codes load failed", "err", err)
		p.Data = consoleData{Err: view.MsgLoadFailed}
	} else {
		p.Data = consoleData{Google: m.GoogleVerification, Naver: m.NaverVerification}
	}
	if req.URL.Query().Get("saved") != "" {
		p.Flash = msgConsoleSaved
	}
	d.Views.Render(w, req, http.StatusOK, "admin_console", p)
}

func (d AdminDeps) saveConsole(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	google := strings.TrimSpace(req.PostForm.Get("google_verification"))
	naver := strings.TrimSpace(req.PostForm.Get("naver_verification"))

	fail := func() {
		p := d.page(req, "서치 콘솔", consoleData{Google: google, Naver: naver})
		p.Alert = msgConsoleFailed
		d.Views.Render(w, req, http.StatusBadGateway, "admin_console", p)
	}
	m, err := d.API.MetaTags(ctx, d.SEO.PublicMetaID)
	if err != nil {
		d.record(req, w, "search_console.update", strconv.Itoa(d.SEO.PublicMetaID), err, nil)
		fail()
		return
	}
	m.GoogleVerification = google
	m.NaverVerification = naver
	_, err = d.API.UpdateMetaTags(ctx, d.SEO.PublicMetaID, *m)
	d.record(req, w, "search_console.update", strconv.Itoa(d.SEO.PublicMetaID), err, nil)
	if err != nil {
		fail()
		return
	}
	d.publish(req, d.SEO.SiteID, "meta")
	savedRedirect(w, req, "/admin/search-console", nil)
}
