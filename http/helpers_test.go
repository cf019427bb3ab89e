package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/fair-web/fairapi"
)

type upstreamCall struct {
	Method string
	Path   string
	Body   string
}

// fakeAPI is a scripted stand-in for the fair directory API. Unscripted routes answer 404.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []upstreamCall
	routes map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) (*fakeAPI, *fairapi.Client) {
	t.Helper()
	f := &fakeAPI{routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		h := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, fairapi.NewClient(fairapi.Options{BaseURL: srv.URL, Token: "test-token"})
}

func (f *fakeAPI) on(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakeAPI) reply(method, path, body string) {
	f.on(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeAPI) fail(method, path string, status int) {
	f.on(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})
}

func (f *fakeAPI) callsTo(method, path string) []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []upstreamCall
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}
