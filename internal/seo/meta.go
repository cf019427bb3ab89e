package seo

import (
	"strings"

	"github.com/yourorg/fair-web/fairapi"
)

// PageMeta is what the layout renders into <head>.
type PageMeta struct {
	Title              string
	Description        string
	Keywords           string
	OGTitle            string
	OGDescription      string
	OGImage            string
	OGURL              string
	GoogleVerification string
	NaverVerification  string
	StructuredData     string
}

// DefaultMeta is used when the meta-tag record cannot be loaded.
var DefaultMeta = PageMeta{
	Title:       "THE WEDDING - 웨딩 박람회",
	Description: "다양한 웨딩 박람회 정보를 만나보세요",
	Keywords:    "웨딩 박람회, 결혼 박람회, 서울 웨딩, 부산 웨딩",
}

func FromMetaTags(m *fairapi.MetaTags) PageMeta {
	if m == nil {
		return DefaultMeta
	}
	return PageMeta{
		Title:              m.MetaTitle,
		Description:        m.MetaDescription,
		Keywords:           m.Keywords,
		OGTitle:            m.OGTitle,
		OGDescription:      m.OGDescription,
		OGImage:            m.OGImage,
		OGURL:              m.OGURL,
		GoogleVerification: m.GoogleVerification,
		NaverVerification:  m.NaverVerification,
	}
}

// WithTitle prefixes the site title with a page title.
func (p PageMeta) WithTitle(page string) PageMeta {
	page = strings.TrimSpace(page)
	if page == "" {
		return p
	}
	if p.Title == "" {
		p.Title = page
	} else {
		p.Title = page + " | " + p.Title
	}
	return p
}
