package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/fair-web/internal/auth"
	"github.com/yourorg/fair-web/internal/config"
	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/session"
	"github.com/yourorg/fair-web/internal/store"
)

type fakeAuth struct {
	grant     *auth.Grant
	err       error
	signedOut []string
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*auth.Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grant, nil
}

func (f *fakeAuth) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

type adminEnv struct {
	api    *fakeAPI
	auth   *fakeAuth
	pub    events.Publisher
	h      http.Handler
	cookie *http.Cookie
}

func newAdminEnv(t *testing.T, audit *store.Store) *adminEnv {
	t.Helper()
	api, client := newFakeAPI(t)
	sessions := session.NewManager(session.NewMemoryStore(), session.Options{Secret: "test-secret"})
	rec := httptest.NewRecorder()
	_, err := sessions.Issue(context.Background(), rec, "user-1", "admin@example.com", "tok-1")
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	env := &adminEnv{
		api:    api,
		auth:   &fakeAuth{grant: &auth.Grant{AccessToken: "tok-2", User: auth.User{ID: "user-2", Email: "new@example.com"}}},
		pub:    events.NewInMemory(8),
		cookie: cookies[0],
	}
	r := chi.NewRouter()
	RegisterAdmin(r, AdminDeps{
		API:      client,
		Views:    newTestRenderer(t),
		Sessions: sessions,
		Auth:     env.auth,
		Audit:    audit,
		Pub:      env.pub,
		SEO:      config.SEOConfig{SiteID: "3", PublicMetaID: 2, AdminMetaID: 3},
	})
	env.h = r
	return env
}

func (e *adminEnv) do(t *testing.T, method, target string, form url.Values, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if signedIn {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *adminEnv) published(t *testing.T) events.SiteChanged {
	t.Helper()
	select {
	case evt := <-e.pub.SubscribeSiteChanged():
		return evt
	case <-time.After(time.Second):
		t.Fatal("no site change published")
		return events.SiteChanged{}
	}
}

func fairForm(title string) url.Values {
	return url.Values{
		"title":        {"  " + title + " "},
		"category1":    {"서울"},
		"category2":    {"강남"},
		"start_date":   {"2025-05-01"},
		"end_date":     {"2025-05-03"},
		"redirect_url": {"https://tickets.example/7"},
		"type":         {"웨딩"},
	}
}

func TestAdminPagesRequireSession(t *testing.T) {
	env := newAdminEnv(t, nil)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/admin/dashboard"},
		{http.MethodGet, "/admin/fairs"},
		{http.MethodPost, "/admin/fairs/7/delete"},
		{http.MethodGet, "/admin/seo/sitemap"},
	} {
		rec := env.do(t, tc.method, tc.target, url.Values{"confirm": {"yes"}}, false)
		assert.Equal(t, http.StatusSeeOther, rec.Code, tc.target)
		assert.Equal(t, "/admin", rec.Header().Get("Location"), tc.target)
	}
	assert.Empty(t, env.api.callsTo(http.MethodDelete, "/admin/fairs/7"))
}

func TestLoginPageRedirectsSignedInAdmin(t *testing.T) {
	env := newAdminEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/admin/", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "관리자 로그인")

	rec = env.do(t, http.MethodGet, "/admin/", nil, true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
}

func TestLoginIssuesSession(t *testing.T) {
	env := newAdminEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/admin/login", url.Values{"email": {" new@example.com "}, "password": {"pw"}}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fair_admin", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestLoginRejectedCredentials(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.auth.err = auth.ErrInvalidCredentials

	rec := env.do(t, http.MethodPost, "/admin/login", url.Values{"email": {"who@example.com"}, "password": {"bad"}}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, msgLoginFailed)
	assert.Contains(t, body, `value="who@example.com"`)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginProviderFailure(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.auth.err = errors.New("connection refused")

	rec := env.do(t, http.MethodPost, "/admin/login", url.Values{"email": {"a@b.c"}, "password": {"pw"}}, false)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLoginError)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLogoutEndsSession(t *testing.T) {
	env := newAdminEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/admin/logout", url.Values{}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	assert.Equal(t, []string{"tok-1"}, env.auth.signedOut)

	rec = env.do(t, http.MethodGet, "/admin/dashboard", nil, true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboardShowsCounts(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/fairs/active", `{"active":"5"}`)
	env.api.reply(http.MethodGet, "/admin/fairs/expired", `{"expired":3}`)

	rec := env.do(t, http.MethodGet, "/admin/dashboard", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>대시보드 | 관리자 페이지</title>")
	assert.Contains(t, body, "<p>5개</p>")
	assert.Contains(t, body, "<p>3개</p>")
	assert.Contains(t, body, "admin@example.com")
	assert.NotContains(t, body, "최근 작업", "audit panel is hidden without a database")
}

func TestDashboardCountsFailure(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.fail(http.MethodGet, "/admin/fairs/active", http.StatusInternalServerError)

	rec := env.do(t, http.MethodGet, "/admin/dashboard", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "데이터를 불러오는 중 오류가 발생했습니다.")
}

func TestCreateFairSendsTrimmedRecord(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPost, "/admin/fairs", `{"status":"success"}`)

	rec := env.do(t, http.MethodPost, "/admin/fairs", fairForm("봄 박람회"), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/fairs", rec.Header().Get("Location"))

	calls := env.api.callsTo(http.MethodPost, "/admin/fairs")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{
		"title":"봄 박람회","category1":"서울","category2":"강남",
		"start_date":"2025-05-01","end_date":"2025-05-03",
		"redirect_url":"https://tickets.example/7","address":"","description":"",
		"promotion":"","image_url":"","type":"웨딩"}`, calls[0].Body)
}

func TestDoubleSubmitSendsIdenticalUpdates(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPut, "/admin/fairs/7", `{"status":"success"}`)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/admin/fairs/7", fairForm("수정된 박람회"), true)
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	calls := env.api.callsTo(http.MethodPut, "/admin/fairs/7")
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Body, calls[1].Body)
}

func TestUpdateFailureKeepsForm(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.fail(http.MethodPut, "/admin/fairs/7", http.StatusInternalServerError)
	env.api.reply(http.MethodGet, "/admin/categories", `{"1":{"id":1,"name":"서울","sub_cities":[{"id":11,"name":"강남"}]}}`)

	rec := env.do(t, http.MethodPost, "/admin/fairs/7", fairForm("수정된 박람회"), true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, msgUpdateFailed)
	assert.Contains(t, body, `value="수정된 박람회"`)
	assert.Contains(t, body, `<option value="강남" selected>강남</option>`)
}

func TestEditFairLoadsRecord(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/fairs/7", `{"id":"7","title":"봄 박람회","start_date":"2025-05-01T00:00:00+09:00","end_date":"2025-05-03","type":"허니문"}`)

	rec := env.do(t, http.MethodGet, "/admin/fairs/7/edit", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/admin/fairs/7"`)
	assert.Contains(t, body, `value="2025-05-01"`)
	assert.Contains(t, body, `<option value="허니문" selected>허니문</option>`)
	assert.Contains(t, body, msgCategoriesFailed)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodDelete, "/admin/fairs/7", `{"status":"success","message":"deleted"}`)

	rec := env.do(t, http.MethodPost, "/admin/fairs/7/delete", url.Values{}, true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/fairs/7/delete", rec.Header().Get("Location"))
	assert.Empty(t, env.api.callsTo(http.MethodDelete, "/admin/fairs/7"))

	rec = env.do(t, http.MethodPost, "/admin/fairs/7/delete", url.Values{"confirm": {"yes"}}, true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/fairs", rec.Header().Get("Location"))
	assert.Len(t, env.api.callsTo(http.MethodDelete, "/admin/fairs/7"), 1)
}

func TestListFairsFilters(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPost, "/admin/fairs/list", fairsJSON("adm", 2, 1, 2))

	rec := env.do(t, http.MethodGet, "/admin/fairs?search=%EB%B4%84&status=bogus", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adm fair 2")
	assert.Contains(t, rec.Body.String(), "2025-05-01 ~ 2025-05-12")

	calls := env.api.callsTo(http.MethodPost, "/admin/fairs/list")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, `"search":"봄"`)
	assert.Contains(t, calls[0].Body, `"status":"all"`)
	assert.Contains(t, calls[0].Body, `"category1":"전체"`)
	assert.Contains(t, calls[0].Body, `"size":"10"`)
}

func TestListFairsRegionFilter(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPost, "/admin/fairs/list", fairsJSON("adm", 1, 1, 1))

	for _, region := range []string{"%20%EB%B6%80%EC%82%B0%20", "%EC%A0%84%EC%B2%B4"} {
		rec := env.do(t, http.MethodGet, "/admin/fairs?category1="+region, nil, true)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	calls := env.api.callsTo(http.MethodPost, "/admin/fairs/list")
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Body, `"category1":"부산"`)
	assert.Contains(t, calls[1].Body, `"category1":"전체"`)
}

const sitesJSON = `{"sites":[{"id":3,"site_name":"Fairs","site_url":"https://site.example","structured_data":{"@context":"https://schema.org","@type":"Organization"}}]}`

func TestSaveSitemapRejectsInvalidXML(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/sites", sitesJSON)

	rec := env.do(t, http.MethodPost, "/admin/seo/sitemap", url.Values{"site": {"3"}, "sitemap_xml": {"<urlset><url>"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "사이트맵 저장에 실패했습니다: ")
	assert.Contains(t, rec.Body.String(), "&lt;urlset&gt;&lt;url&gt;", "the rejected text stays in the editor")
	assert.Empty(t, env.api.callsTo(http.MethodPut, "/admin/sites/3/sitemap"))
}

func TestSaveSitemapStoresAndPublishes(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPut, "/admin/sites/3/sitemap", `{"status":"success"}`)
	doc := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>https://site.example/</loc></url></urlset>`

	rec := env.do(t, http.MethodPost, "/admin/seo/sitemap", url.Values{"site": {"3"}, "sitemap_xml": {doc}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/seo/sitemap?saved=1&site=3", rec.Header().Get("Location"))

	calls := env.api.callsTo(http.MethodPut, "/admin/sites/3/sitemap")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, `"sitemap_xml"`)

	evt := env.published(t)
	assert.Equal(t, "3", evt.SiteID)
	assert.Equal(t, "sitemap", evt.What)
}

func TestRegenerateWithoutJobFails(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/sites", sitesJSON)

	rec := env.do(t, http.MethodPost, "/admin/seo/sitemap/regenerate", url.Values{"site": {"3"}}, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "사이트맵 생성에 실패했습니다")
}

func TestStructuredDataPageShowsStoredDocument(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/sites", sitesJSON)

	rec := env.do(t, http.MethodGet, "/admin/seo/structured-data", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&#34;@type&#34;: &#34;Organization&#34;")
	assert.Contains(t, rec.Body.String(), `<option value="3" selected>`)
}

func TestStructuredDataValidate(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/sites", sitesJSON)

	for _, tc := range []struct {
		name, text string
		status     int
		want       string
	}{
		{"valid", `{"@context":"https://schema.org","@type":"Event"}`, http.StatusOK, msgJSONValid},
		{"not json", `{"@context":`, http.StatusUnprocessableEntity, msgJSONInvalid},
		{"not json-ld", `{"name":"x"}`, http.StatusUnprocessableEntity, "JSON-LD 형식이 아닙니다"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/admin/seo/structured-data",
				url.Values{"site": {"3"}, "structured_data": {tc.text}, "action": {"validate"}}, true)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
	assert.Empty(t, env.api.callsTo(http.MethodPut, "/admin/sites/3/structured-data"))
}

func TestStructuredDataSave(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodPut, "/admin/sites/3/structured-data", `{"status":"success"}`)

	rec := env.do(t, http.MethodPost, "/admin/seo/structured-data", url.Values{
		"site":            {"3"},
		"structured_data": {"{\n \"@context\": \"https://schema.org\",\n \"@type\": \"Event\"\n}"},
		"action":          {"save"},
	}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	calls := env.api.callsTo(http.MethodPut, "/admin/sites/3/structured-data")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"structured_data":{"@context":"https://schema.org","@type":"Event"}}`, calls[0].Body)
	assert.Equal(t, "structured_data", env.published(t).What)
}

func TestSaveMetaKeepsUneditedFields(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/meta-tags/3", `{"meta":{"id":3,"meta_title":"old","google_verification":"g-1"}}`)
	env.api.reply(http.MethodPut, "/admin/meta-tags/3", `{"meta":{"id":3,"meta_title":"new"}}`)

	rec := env.do(t, http.MethodPost, "/admin/seo/meta", url.Values{"meta_title": {" new "}, "og_url": {"https://site.example"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/seo/meta?saved=1", rec.Header().Get("Location"))

	calls := env.api.callsTo(http.MethodPut, "/admin/meta-tags/3")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, `"meta_title":"new"`)
	assert.Contains(t, calls[0].Body, `"og_url":"https://site.example"`)
	assert.Contains(t, calls[0].Body, `"google_verification":"g-1"`)

	rec = env.do(t, http.MethodGet, "/admin/seo/meta?saved=1", nil, true)
	assert.Contains(t, rec.Body.String(), msgMetaSaved)
}

func TestSaveMetaFailsWhenCurrentRecordUnavailable(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.fail(http.MethodGet, "/admin/meta-tags/3", http.StatusInternalServerError)
	env.api.reply(http.MethodPut, "/admin/meta-tags/3", `{"meta":{"id":3}}`)

	rec := env.do(t, http.MethodPost, "/admin/seo/meta", url.Values{"meta_title": {"new"}}, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), msgMetaLoadFailed)
	assert.Contains(t, rec.Body.String(), `value="new"`, "posted values stay in the form")
	assert.Empty(t, env.api.callsTo(http.MethodPut, "/admin/meta-tags/3"))
}

func TestSearchConsoleWritesPublicRecord(t *testing.T) {
	env := newAdminEnv(t, nil)
	env.api.reply(http.MethodGet, "/admin/meta-tags/2", `{"meta":{"id":2,"meta_title":"Fairs"}}`)
	env.api.reply(http.MethodPut, "/admin/meta-tags/2", `{"meta":{"id":2}}`)

	rec := env.do(t, http.MethodPost, "/admin/search-console", url.Values{"google_verification": {"g-9"}, "naver_verification": {"n-9"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	calls := env.api.callsTo(http.MethodPut, "/admin/meta-tags/2")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Body, `"google_verification":"g-9"`)
	assert.Contains(t, calls[0].Body, `"naver_verification":"n-9"`)
	assert.Contains(t, calls[0].Body, `"meta_title":"Fairs"`)
	assert.Empty(t, env.api.callsTo(http.MethodPut, "/admin/meta-tags/3"))
}

func TestAdminActionsAreAudited(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	env := newAdminEnv(t, &store.Store{DB: db})
	env.api.fail(http.MethodPut, "/admin/fairs/7", http.StatusInternalServerError)

	mock.ExpectExec("INSERT INTO admin_audit").
		WithArgs("user-1", "admin@example.com", "fair.update", "7", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := env.do(t, http.MethodPost, "/admin/fairs/7", fairForm("x"), true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
