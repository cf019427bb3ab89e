package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/yourorg/fair-web/fairapi"
	"github.com/yourorg/fair-web/internal/auth"
	"github.com/yourorg/fair-web/internal/config"
	"github.com/yourorg/fair-web/internal/events"
	"github.com/yourorg/fair-web/internal/logger"
	"github.com/yourorg/fair-web/internal/metrics"
	"github.com/yourorg/fair-web/internal/seo"
	"github.com/yourorg/fair-web/internal/session"
	"github.com/yourorg/fair-web/internal/sitegen"
	"github.com/yourorg/fair-web/internal/store"
	"github.com/yourorg/fair-web/internal/view"
)

const (
	msgLoginFailed  = "이메일 또는 비밀번호가 올바르지 않습니다."
	msgLoginError   = "로그인 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	adminPageSize   = 10
	adminListWindow = 5
)

// Authenticator is the part of the auth provider the console uses.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Grant, error)
	SignOut(ctx context.Context, accessToken string) error
}

type AdminDeps struct {
	API      *fairapi.Client
	Views    *Renderer
	Sessions *session.Manager
	Auth     Authenticator
	Audit    *store.Store
	Metrics  *metrics.Collector
	Pub      events.Publisher
	Sitegen  *sitegen.Job
	SEO      config.SEOConfig
	// LoginPerMin caps login attempts per client IP; 0 disables the limit.
	LoginPerMin int
}

// RegisterAdmin mounts the console under /admin. Every page except the login form
// requires a session.
func RegisterAdmin(r chi.Router, d AdminDeps) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/", d.loginPage)
		r.Group(func(r chi.Router) {
			if d.LoginPerMin > 0 {
				r.Use(httprate.LimitByIP(d.LoginPerMin, time.Minute))
			}
			r.Post("/login", d.login)
		})
		r.Group(func(r chi.Router) {
			r.Use(d.requireSession)
			r.Post("/logout", d.logout)
			r.Get("/dashboard", d.dashboard)

			r.Get("/fairs", d.listFairs)
			r.Get("/fairs/new", d.newFair)
			r.Post("/fairs", d.createFair)
			r.Get("/fairs/{id}/edit", d.editFair)
			r.Post("/fairs/{id}", d.updateFair)
			r.Get("/fairs/{id}/delete", d.confirmDelete)
			r.Post("/fairs/{id}/delete", d.deleteFair)

			r.Get("/seo", func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, "/admin/seo/meta", http.StatusSeeOther)
			})
			r.Get("/seo/meta", d.metaPage)
			r.Post("/seo/meta", d.saveMeta)
			r.Get("/seo/sitemap", d.sitemapPage)
			r.Post("/seo/sitemap", d.saveSitemap)
			r.Post("/seo/sitemap/regenerate", d.regenerateSitemap)
			r.Get("/seo/structured-data", d.structuredPage)
			r.Post("/seo/structured-data", d.saveStructured)
			r.Get("/search-console", d.consolePage)
			r.Post("/search-console", d.saveConsole)
		})
	})
}

func (d AdminDeps) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s, err := d.Sessions.FromRequest(req)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				logger.FromContext(req.Context()).Error("session lookup failed", "err", err)
			}
			http.Redirect(w, req, "/admin", http.StatusSeeOther)
			return
		}
		ctx := session.WithSession(req.Context(), s)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("admin", s.Email))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (d AdminDeps) page(req *http.Request, title string, data any) Page {
	return Page{
		Meta:    seo.PageMeta{Title: title + " | 관리자 페이지"},
		Session: session.FromContext(req.Context()),
		Data:    data,
	}
}

type loginData struct{ Email string }

func (d AdminDeps) loginPage(w http.ResponseWriter, req *http.Request) {
	if _, err := d.Sessions.FromRequest(req); err == nil {
		http.Redirect(w, req, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	d.Views.Render(w, req, http.StatusOK, "admin_login", d.page(req, "로그인", loginData{}))
}

func (d AdminDeps) login(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := logger.FromContext(ctx)
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(req.PostForm.Get("email"))
	password := req.PostForm.Get("password")

	fail := func(status int, msg string) {
		p := d.page(req, "로그인", loginData{Email: email})
		p.Alert = msg
		d.Views.Render(w, req, status, "admin_login", p)
	}

	grant, err := d.Auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Warn("admin login rejected", "email", email)
			fail(http.StatusUnauthorized, msgLoginFailed)
			return
		}
		log.Error("admin login failed", "err", err)
		fail(http.StatusBadGateway, msgLoginError)
		return
	}
	s, err := d.Sessions.Issue(ctx, w, grant.User.ID, grant.User.Email, grant.AccessToken)
	if err != nil {
		log.Error("session issue failed", "err", err)
		fail(http.StatusInternalServerError, msgLoginError)
		return
	}
	d.record(req.WithContext(session.WithSession(ctx, s)), w, "auth.login", s.UserID, nil, nil)
	http.Redirect(w, req, "/admin/dashboard", http.StatusSeeOther)
}

func (d AdminDeps) logout(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s := session.FromContext(ctx)
	if s != nil && s.AccessToken != "" {
		if err := d.Auth.SignOut(ctx, s.AccessToken); err != nil {
			logger.FromContext(ctx).Warn("auth sign-out failed", "err", err)
		}
	}
	if err := d.Sessions.Destroy(w, req); err != nil {
		logger.FromContext(ctx).Warn("session delete failed", "err", err)
	}
	d.record(req, w, "auth.logout", "", nil, nil)
	http.Redirect(w, req, "/admin", http.StatusSeeOther)
}

type dashboardData struct {
	Counts       fairapi.FairCounts
	CountsErr    string
	AuditEnabled bool
	Actions      []store.AdminAction
}

func (d AdminDeps) dashboard(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	log := logger.FromContext(ctx)
	data := dashboardData{AuditEnabled: d.Audit.Enabled()}

	counts, err := d.API.FairCounts(ctx)
	if err != nil {
		log.Error("fair counts failed", "err", err)
		data.CountsErr = view.MsgLoadFailed
	}
	data.Counts = counts

	if data.AuditEnabled {
		actions, err := d.Audit.RecentAdminActions(ctx, 20)
		if err != nil {
			log.Error("recent admin actions failed", "err", err)
		}
		data.Actions = actions
	}
	d.Views.Render(w, req, http.StatusOK, "admin_dashboard", d.page(req, "대시보드", data))
}

// record writes an admin action to the audit log and metrics. Audit failures are logged,
// never shown.
func (d AdminDeps) record(req *http.Request, w http.ResponseWriter, action, target string, opErr error, detail map[string]any) {
	ctx := req.Context()
	log := logger.FromContext(ctx)
	ok := opErr == nil
	d.Metrics.ObserveAdmin(action, ok)

	a := store.AdminAction{
		Action:    action,
		Target:    target,
		OK:        ok,
		Detail:    detail,
		RequestID: w.Header().Get(logger.RequestIDHeader),
	}
	if s := session.FromContext(ctx); s != nil {
		a.ActorID, a.ActorEmail = s.UserID, s.Email
	}
	if !ok {
		if a.Detail == nil {
			a.Detail = map[string]any{}
		}
		a.Detail["error"] = opErr.Error()
		log.Error("admin action failed", "action", action, "target", target, "err", opErr)
	} else {
		log.Info("admin action", "action", action, "target", target)
	}
	// the request may be cancelled right after the redirect is written
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.Audit.RecordAdminAction(auditCtx, a); err != nil {
		log.Error("audit write failed", "action", action, "err", err)
	}
}
