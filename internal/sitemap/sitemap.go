// Package sitemap reads and writes the urlset documents stored per site.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	NS      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	XHTMLNS = "http://www.w3.org/1999/xhtml"

	DefaultChangeFreq = "daily"
	DefaultPriority   = 0.5
)

var ErrNoURLSet = errors.New("sitemap: document has no urlset root")

type Alternate struct {
	Lang string
	Href string
}

type Entry struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
	Alternates []Alternate
}

// DefaultLastMod is 02:00 UTC of now's UTC day; entries without lastmod get it.
func DefaultLastMod(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 2, 0, 0, 0, time.UTC)
}

type urlsetIn struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc        string `xml:"loc"`
		LastMod    string `xml:"lastmod"`
		ChangeFreq string `xml:"changefreq"`
		Priority   string `xml:"priority"`
		Links      []struct {
			Rel  string `xml:"rel,attr"`
			Lang string `xml:"hreflang,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"url"`
}

// Parse decodes a urlset and fills defaults: lastmod 02:00 UTC today, changefreq daily,
// priority 0.5. Only rel="alternate" links with both hreflang and href are kept.
func Parse(doc []byte, now time.Time) ([]Entry, error) {
	var in urlsetIn
	if err := xml.Unmarshal(doc, &in); err != nil {
		if strings.Contains(err.Error(), "expected element type <urlset>") {
			return nil, ErrNoURLSet
		}
		return nil, fmt.Errorf("sitemap: %w", err)
	}
	def := DefaultLastMod(now)
	out := make([]Entry, 0, len(in.URLs))
	for i, u := range in.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			return nil, fmt.Errorf("sitemap: url %d has no loc", i+1)
		}
		e := Entry{
			Loc:        loc,
			LastMod:    def,
			ChangeFreq: DefaultChangeFreq,
			Priority:   DefaultPriority,
		}
		if t, ok := parseTime(u.LastMod); ok {
			e.LastMod = t
		}
		if cf := strings.TrimSpace(u.ChangeFreq); cf != "" {
			e.ChangeFreq = cf
		}
		if p, err := strconv.ParseFloat(strings.TrimSpace(u.Priority), 64); err == nil {
			e.Priority = p
		}
		for _, l := range u.Links {
			if l.Rel == "alternate" && l.Lang != "" && l.Href != "" {
				e.Alternates = append(e.Alternates, Alternate{Lang: l.Lang, Href: l.Href})
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Validate reports whether doc is a urlset Parse accepts.
func Validate(doc string) error {
	_, err := Parse([]byte(doc), time.Now())
	return err
}

// Fallback is served when the stored document cannot be fetched or parsed.
func Fallback(siteURL string, now time.Time) []Entry {
	return []Entry{{
		Loc:        strings.TrimRight(siteURL, "/"),
		LastMod:    now.UTC(),
		ChangeFreq: DefaultChangeFreq,
		Priority:   1.0,
	}}
}

type urlsetOut struct {
	XMLName xml.Name `xml:"urlset"`
	NS      string   `xml:"xmlns,attr"`
	XHTML   string   `xml:"xmlns:xhtml,attr,omitempty"`
	URLs    []urlOut `xml:"url"`
}

type urlOut struct {
	Loc        string    `xml:"loc"`
	Links      []linkOut `xml:"xhtml:link"`
	LastMod    string    `xml:"lastmod,omitempty"`
	ChangeFreq string    `xml:"changefreq,omitempty"`
	Priority   string    `xml:"priority,omitempty"`
}

type linkOut struct {
	Rel  string `xml:"rel,attr"`
	Lang string `xml:"hreflang,attr"`
	Href string `xml:"href,attr"`
}

// Build encodes entries as an indented urlset with an XML declaration.
func Build(entries []Entry) ([]byte, error) {
	doc := urlsetOut{NS: NS, URLs: make([]urlOut, 0, len(entries))}
	for _, e := range entries {
		u := urlOut{Loc: e.Loc, ChangeFreq: e.ChangeFreq}
		if !e.LastMod.IsZero() {
			u.LastMod = e.LastMod.UTC().Format(time.RFC3339)
		}
		if e.Priority > 0 {
			u.Priority = strconv.FormatFloat(e.Priority, 'f', -1, 64)
		}
		for _, a := range e.Alternates {
			u.Links = append(u.Links, linkOut{Rel: "alternate", Lang: a.Lang, Href: a.Href})
			doc.XHTML = XHTMLNS
		}
		doc.URLs = append(doc.URLs, u)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("sitemap: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
