// Package view turns API records into the values templates and the JSON continuation
// endpoints render.
package view

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/fair-web/fairapi"
)

// Messages shown to visitors. Read views never show the underlying cause.
const (
	MsgLoadFailed      = "데이터를 불러오는 중 오류가 발생했습니다."
	MsgNoScheduled     = "현재 예정된 웨딩 박람회가 없습니다."
	MsgNoResults       = "검색 결과가 없습니다."
	MsgNoRegionFairs   = "해당 지역에서 열리는 박람회가 없습니다."
	MsgMissingCategory = "필요한 카테고리 정보가 없습니다."
	DefaultFairType    = "전시"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusEnded    Status = "ended"
	StatusUnknown  Status = ""
)

func (s Status) Label() string {
	switch s {
	case StatusUpcoming:
		return "예정"
	case StatusOngoing:
		return "진행중"
	case StatusEnded:
		return "종료"
	default:
		return ""
	}
}

// FairStatus compares the fair's date range with today's date in loc.
func FairStatus(f fairapi.Fair, now time.Time) Status {
	start, okS := fairapi.ParseDate(fairapi.DateOnly(f.StartDate))
	end, okE := fairapi.ParseDate(fairapi.DateOnly(f.EndDate))
	if !okS || !okE {
		return StatusUnknown
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch {
	case today.Before(start):
		return StatusUpcoming
	case today.After(end):
		return StatusEnded
	default:
		return StatusOngoing
	}
}

// MMDD renders an API date as "05-01"; unparseable input yields "".
func MMDD(s string) string {
	t, ok := fairapi.ParseDate(fairapi.DateOnly(s))
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Day())
}

// Card is one fair as shown in a listing grid.
type Card struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Region   string `json:"region"`
	Type     string `json:"type"`
	Dates    string `json:"dates"`
	Address  string `json:"address"`
	Blurb    string `json:"blurb"`
	ImageURL string `json:"image_url"`
	Link     string `json:"link"`
	Status   Status `json:"status"`
}

func CardFromFair(f fairapi.Fair, now time.Time) Card {
	typ := strings.TrimSpace(f.Type)
	if typ == "" {
		typ = DefaultFairType
	}
	blurb := f.Promotion
	if strings.TrimSpace(blurb) == "" {
		blurb = f.Description
	}
	region := f.Category1
	if f.Category2 != "" {
		region += " > " + f.Category2
	}
	link := f.RedirectURL
	if link == "" {
		link = "/fairs/" + url.PathEscape(f.ID)
	}
	return Card{
		ID:       f.ID,
		Title:    f.Title,
		Region:   region,
		Type:     typ,
		Dates:    MMDD(f.StartDate) + " ~ " + MMDD(f.EndDate),
		Address:  f.Address,
		Blurb:    blurb,
		ImageURL: f.ImageURL,
		Link:     link,
		Status:   FairStatus(f, now),
	}
}

func Cards(fairs []fairapi.Fair, now time.Time) []Card {
	out := make([]Card, 0, len(fairs))
	for _, f := range fairs {
		out = append(out, CardFromFair(f, now))
	}
	return out
}

// PageWindow returns up to width page numbers centred on current, shifted to stay inside
// 1..total.
func PageWindow(current, total, width int) []int {
	if total < 1 || width < 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}
	start := current - width/2
	if start < 1 {
		start = 1
	}
	end := start + width - 1
	if end > total {
		end = total
	}
	if end-start+1 < width {
		start = end - width + 1
		if start < 1 {
			start = 1
		}
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

// Pager is the numbered pagination bar.
type Pager struct {
	Current int
	Total   int
	Pages   []int
	Prev    int // 0 when there is no previous page
	Next    int // 0 when there is no next page
	BaseURL string
	Param   string
}

// NewPager builds a bar; width 0 lists every page.
func NewPager(baseURL string, q url.Values, current, total, width int) Pager {
	if total < 1 {
		total = 1
	}
	p := Pager{Current: current, Total: total, Param: "page"}
	if width <= 0 {
		p.Pages = PageWindow(current, total, total)
	} else {
		p.Pages = PageWindow(current, total, width)
	}
	if current > 1 {
		p.Prev = current - 1
	}
	if current < total {
		p.Next = current + 1
	}
	qq := url.Values{}
	for k, v := range q {
		if k != p.Param {
			qq[k] = v
		}
	}
	if enc := qq.Encode(); enc != "" {
		p.BaseURL = baseURL + "?" + enc + "&"
	} else {
		p.BaseURL = baseURL + "?"
	}
	return p
}

func (p Pager) URL(page int) string {
	return fmt.Sprintf("%s%s=%d", p.BaseURL, p.Param, page)
}

func (p Pager) Show() bool { return p.Total > 1 }

// DetailURL links the region detail page.
func DetailURL(main, sub string) string {
	q := url.Values{}
	q.Set("main", main)
	q.Set("sub", sub)
	q.Set("mainName", main)
	q.Set("subName", sub)
	return "/detail?" + q.Encode()
}

// SectionFeedURL is the JSON continuation URL for the next page of a home section.
// An empty typ is left out.
func SectionFeedURL(main, typ string, page int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	if typ != "" {
		q.Set("type", typ)
	}
	return "/v1/sections/" + url.PathEscape(main) + "/fairs?" + q.Encode()
}

// DetailFeedURL is the JSON continuation URL for a region listing.
func DetailFeedURL(main, sub string, page int) string {
	q := url.Values{}
	q.Set("main", main)
	q.Set("sub", sub)
	q.Set("page", fmt.Sprint(page))
	return "/v1/detail/fairs?" + q.Encode()
}

// SearchFeedURL is the JSON continuation URL for a search.
func SearchFeedURL(query, typ string, page int) string {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if typ != "" {
		q.Set("type", typ)
	}
	q.Set("page", fmt.Sprint(page))
	return "/v1/search?" + q.Encode()
}
