package httpapi

import (
	"context"
	"net/http"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/seo"
	"github.com/yourorg/fair-web/internal/view"
)

// chrome loads what the public layout needs on every page: navigation, meta tags and
// structured data. Each part falls back on its own when the API fails.
func (d PublicDeps) chrome(r *http.Request, title string) Page {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	p := Page{Meta: seo.DefaultMeta, Query: r.URL.Query().Get("query")}

	if m, err := d.API.PublicMetaTags(ctx, d.SEO.PublicMetaID); err != nil {
		log.Warn("meta tags unavailable, using defaults", "err", err)
	} else {
		p.Meta = seo.FromMetaTags(m)
	}
	p.Meta = p.Meta.WithTitle(title)

	if sd, err := d.API.StructuredData(ctx, d.SEO.SiteID); err != nil {
		log.Warn("structured data unavailable", "err", err)
	} else if js, ok := seo.ScriptJSON(sd); ok {
		p.JSONLD = js
	}

	p.Nav = d.nav(ctx)
	return p
}

func (d PublicDeps) nav(ctx context.Context) []NavItem {
	cats, err := d.API.AllSubCities(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("navigation unavailable", "err", err)
		return nil
	}
	return navItems(cats)
}

func navItems(cats []fairapi.Category) []NavItem {
	out := make([]NavItem, 0, len(cats))
	for _, c := range cats {
		item := NavItem{Name: c.Name}
		for _, s := range c.SubCities {
			item.Subs = append(item.Subs, NavLink{Name: s.Name, URL: view.DetailURL(c.Name, s.Name)})
		}
		out = append(out, item)
	}
	return out
}
