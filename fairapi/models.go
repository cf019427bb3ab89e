package fairapi

import (
	"encoding/json"
	"strings"
	"time"
)

type Fair struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category1   string `json:"category1"` // main region
	Category2   string `json:"category2"` // sub region
	Region      string `json:"region"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RedirectURL string `json:"redirect_url"`
	Address     string `json:"address"`
	Description string `json:"description"`
	Promotion   string `json:"promotion"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	ImageURL    string `json:"image_url"`
	Hash        string `json:"hash"`
	Type        string `json:"type"`
}

// FairForm is the writable part of a Fair, sent whole on create and update.
type FairForm struct {
	Title       string `json:"title"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RedirectURL string `json:"redirect_url"`
	Address     string `json:"address"`
	Description string `json:"description"`
	Promotion   string `json:"promotion"`
	ImageURL    string `json:"image_url"`
	Type        string `json:"type"`
}

func FormFromFair(f Fair) FairForm {
	return FairForm{
		Title:       f.Title,
		Category1:   f.Category1,
		Category2:   f.Category2,
		StartDate:   DateOnly(f.StartDate),
		EndDate:     DateOnly(f.EndDate),
		RedirectURL: f.RedirectURL,
		Address:     f.Address,
		Description: f.Description,
		Promotion:   f.Promotion,
		ImageURL:    f.ImageURL,
		Type:        f.Type,
	}
}

type FairsPage struct {
	Fairs       []Fair
	TotalPages  int
	CurrentPage int
	TotalCount  int
}

type City struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Category is a main city together with its sub cities.
type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SubCities []City `json:"sub_cities"`
}

type Site struct {
	ID             flexString `json:"id"`
	Name           string     `json:"site_name"`
	URL            string     `json:"site_url"`
	SitemapXML     *string    `json:"sitemap_xml"`
	StructuredData *string    `json:"-"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

func (s Site) SiteID() string { return string(s.ID) }

// UnmarshalJSON accepts structured_data either as a JSON string or as an embedded object.
func (s *Site) UnmarshalJSON(b []byte) error {
	type plain Site
	var aux struct {
		plain
		StructuredData json.RawMessage `json:"structured_data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Site(aux.plain)
	s.StructuredData = rawToText(aux.StructuredData)
	return nil
}

type MetaTags struct {
	ID                 int    `json:"id,omitempty"`
	SiteID             string `json:"site_id,omitempty"`
	MetaTitle          string `json:"meta_title"`
	MetaDescription    string `json:"meta_description"`
	Keywords           string `json:"keywords"`
	OGTitle            string `json:"og_title"`
	OGDescription      string `json:"og_description"`
	OGImage            string `json:"og_image"`
	OGURL              string `json:"og_url"`
	GoogleVerification string `json:"google_verification,omitempty"`
	NaverVerification  string `json:"naver_verification,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

type FairCounts struct {
	Active  int
	Expired int
}

// DateOnly trims an API timestamp ("2025-05-01T00:00:00+09:00") to its date part.
func DateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return strings.TrimSpace(s)
}

// ParseDate understands the date and timestamp shapes the API emits.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2006-01-02", DateOnly(s)); err == nil {
		return t, true
	}
	return time.Time{}, false
}
