package fairapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/functions/v1/", Token: "anon-key", Timeout: 2 * time.Second})
}

func TestMainCategoryFairsSendsParamsAndBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/functions/v1/fairs/main", r.URL.Path)
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p FairsParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, FairsParams{Main: "서울", Sub: "", Type: "", Page: "2", Size: "9"}, p)

		_, _ = io.WriteString(w, `{"fairs":[{"id":"a","title":"Spring Fair"}],"totalPages":"3","currentPage":"2","totalCount":19}`)
	})

	page, err := c.MainCategoryFairs(context.Background(), NewFairsParams("서울", "", "", 2, 9))
	require.NoError(t, err)
	require.Len(t, page.Fairs, 1)
	assert.Equal(t, "Spring Fair", page.Fairs[0].Title)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 19, page.TotalCount)
}

func TestFairsPageMissingFairsIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"totalPages":"1"}`)
	})
	_, err := c.SearchFairs(context.Background(), NewSearchParams("x", "", 1, 12))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestNon2xxIsAPIError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})
	_, err := c.FairByID(context.Background(), "42")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "fairs.get", apiErr.Op)
	assert.Contains(t, apiErr.Body, "boom")
	assert.EqualValues(t, 1, calls.Load(), "no retry by default")
}

func TestRetryWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"id":1,"name":"서울"}]`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Token: "t", RetryMax: 1})
	cities, err := c.MainCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []City{{ID: 1, Name: "서울"}}, cities)
	assert.EqualValues(t, 2, calls.Load())
}

func TestAllSubCitiesSortedByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/cities/sub/all", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"2": {"id": 2, "name": "부산", "sub_cities": [{"id": 21, "name": "해운대"}]},
			"1": {"id": 1, "name": "서울", "sub_cities": null}
		}`)
	})
	cats, err := c.AllSubCities(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "서울", cats[0].Name)
	assert.Empty(t, cats[0].SubCities)
	assert.Equal(t, "해운대", cats[1].SubCities[0].Name)
}

func TestSitemapXMLIsText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<urlset><url><loc>https://a/</loc></url></urlset>`)
	})
	xml, err := c.SitemapXML(context.Background(), "3")
	require.NoError(t, err)
	assert.Contains(t, xml, "<loc>https://a/</loc>")
}

func TestStructuredDataStringOrObject(t *testing.T) {
	body := `{"structured_data":"{\"@context\":\"https://schema.org\"}"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
	s, err := c.StructuredData(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, `{"@context":"https://schema.org"}`, s)

	body = `{"structured_data":{"@type":"Organization"}}`
	s, err = c.StructuredData(context.Background(), "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"@type":"Organization"}`, s)

	body = `{"structured_data":null}`
	s, err = c.StructuredData(context.Background(), "3")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestMetaTagsEnvelope(t *testing.T) {
	body := `{"meta":{"meta_title":"Fairs","og_url":"https://x"}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
	m, err := c.PublicMetaTags(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Fairs", m.MetaTitle)

	body = `{"error":"not configured"}`
	_, err = c.MetaTags(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "not configured")
}

func TestAdminMutations(t *testing.T) {
	type seen struct {
		method, path string
		body         map[string]any
	}
	var got []seen
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, seen{r.Method, r.URL.Path, body})
		if r.Method == http.MethodDelete {
			_, _ = io.WriteString(w, `{"status":"ok","message":"deleted"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})
	ctx := context.Background()
	form := FairForm{Title: "T", Category1: "서울", Category2: "강남", StartDate: "2025-05-01", EndDate: "2025-05-02"}

	require.NoError(t, c.AddFair(ctx, form))
	require.NoError(t, c.UpdateFair(ctx, "f 1", form))
	res, err := c.DeleteFair(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "deleted", res.Message)
	require.NoError(t, c.UpdateSitemapXML(ctx, "3", "<urlset/>"))
	require.NoError(t, c.UpdateStructuredData(ctx, "3", json.RawMessage(`{"@type":"Organization"}`)))

	require.Len(t, got, 5)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/functions/v1/admin/fairs", got[0].path)
	assert.Equal(t, "T", got[0].body["title"])
	assert.Equal(t, http.MethodPut, got[1].method)
	assert.Equal(t, "/functions/v1/admin/fairs/f 1", got[1].path)
	assert.Equal(t, http.MethodDelete, got[2].method)
	assert.Equal(t, "/functions/v1/admin/sites/3/sitemap", got[3].path)
	assert.Equal(t, "<urlset/>", got[3].body["sitemap_xml"])
	assert.Equal(t, map[string]any{"@type": "Organization"}, got[4].body["structured_data"])
}

func TestSitesDecodeStructuredData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"sites":[
			{"id":3,"site_name":"Main","site_url":"https://a","sitemap_xml":null,"structured_data":{"@type":"Organization"}},
			{"id":"4","site_name":"Other","site_url":"https://b","sitemap_xml":"<urlset/>","structured_data":null}
		]}`)
	})
	sites, err := c.Sites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "3", sites[0].SiteID())
	require.NotNil(t, sites[0].StructuredData)
	assert.JSONEq(t, `{"@type":"Organization"}`, *sites[0].StructuredData)
	assert.Nil(t, sites[0].SitemapXML)
	assert.Equal(t, "4", sites[1].SiteID())
	assert.Nil(t, sites[1].StructuredData)
}

func TestFairCountsAndObserver(t *testing.T) {
	obs := &recordingObserver{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/fairs/active":
			_, _ = io.WriteString(w, `{"active":"12"}`)
		case "/admin/fairs/expired":
			_, _ = io.WriteString(w, `{"expired":3}`)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Token: "t", Observer: obs, RateLimit: 100})
	counts, err := c.FairCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FairCounts{Active: 12, Expired: 3}, counts)
	assert.Equal(t, []string{"admin.fairs.active", "admin.fairs.expired"}, obs.ops)
}

func TestDateHelpers(t *testing.T) {
	assert.Equal(t, "2025-05-01", DateOnly("2025-05-01T10:00:00+09:00"))
	assert.Equal(t, "2025-05-01", DateOnly("2025-05-01"))

	d, ok := ParseDate("2025-05-01T10:00:00")
	require.True(t, ok)
	assert.Equal(t, 2025, d.Year())
	_, ok = ParseDate("")
	assert.False(t, ok)

	f := FormFromFair(Fair{ID: "x", Title: "T", StartDate: "2025-05-01T00:00:00", EndDate: "2025-05-03T00:00:00"})
	assert.Equal(t, "2025-05-01", f.StartDate)
	assert.Equal(t, "2025-05-03", f.EndDate)
}

type recordingObserver struct{ ops []string }

func (r *recordingObserver) ObserveUpstream(op string, _ int, _ time.Duration) {
	r.ops = append(r.ops, op)
}
