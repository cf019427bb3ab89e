package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/seo"
	"github.com/yourorg/fair-web/internal/session"
	"github.com/yourorg/fair-web/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

var publicPages = []string{"home", "search", "detail", "fair", "error"}

var adminPages = []string{
	"admin_login", "admin_dashboard", "admin_fairs", "admin_fair_form", "admin_fair_delete",
	"admin_meta", "admin_sitemap", "admin_structured", "admin_console",
}

// Page is the value every template executes against.
type Page struct {
	Meta   seo.PageMeta
	JSONLD template.JS
	Nav    []NavItem
	Path   string
	Query  string
	// Alert is a blocking failure message; the admin layout also raises it with window.alert.
	Alert   string
	Flash   string
	Session *session.Session
	Data    any
}

type NavItem struct {
	Name string
	Subs []NavLink
}

type NavLink struct {
	Name string
	URL  string
}

// Renderer holds one parsed template set per page, each cloned from its layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"blankCard": func() view.Card { return view.Card{} },
	"statusLabel": func(s view.Status) string {
		return s.Label()
	},
	"add": func(a, b int) int { return a + b },
	"join": strings.Join,
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	if err := r.parse("layout.html", publicPages); err != nil {
		return nil, err
	}
	if err := r.parse("admin_layout.html", adminPages); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) parse(layout string, pages []string) error {
	base, err := template.New(layout).Funcs(funcs).ParseFS(templateFS, "templates/"+layout, "templates/partials.html")
	if err != nil {
		return fmt.Errorf("parse %s: %w", layout, err)
	}
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return nil
}

// Render executes the page into a buffer first so a template error never leaves a
// half-written response.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, p Page) {
	t, ok := r.pages[name]
	if !ok {
		logger.FromContext(req.Context()).Error("unknown template", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if p.Path == "" {
		p.Path = req.URL.Path
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		logger.FromContext(req.Context()).Error("render failed", "page", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(req.Context()).Debug("write response", "err", err)
	}
}

// Assets serves the embedded /assets tree.
func Assets() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		slog.Error("assets", "err", err)
		return http.NotFoundHandler()
	}
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}
