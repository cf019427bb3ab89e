package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the fair-web metric vectors.
type Collector struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	SitemapLookups   *prometheus.CounterVec
	AdminMutations   *prometheus.CounterVec
}

func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "fairweb"
	}
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the fair directory API",
		}, []string{"op", "status_code"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of fair directory API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served",
		}, []string{"method", "route", "status_code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of served requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SitemapLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sitemap_lookups_total",
			Help:      "Sitemap cache lookups by outcome",
		}, []string{"status"}),
		AdminMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_mutations_total",
			Help:      "Admin create/update/delete calls by outcome",
		}, []string{"action", "ok"}),
	}
	reg.MustRegister(c.UpstreamRequests, c.UpstreamDuration, c.HTTPRequests, c.HTTPDuration, c.SitemapLookups, c.AdminMutations)
	return c
}

// ObserveUpstream satisfies fairapi.Observer. Status 0 is a transport failure.
// The Observe methods do nothing on a nil *Collector.
func (c *Collector) ObserveUpstream(op string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.UpstreamDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) ObserveSitemap(status string) {
	if c == nil {
		return
	}
	c.SitemapLookups.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveAdmin(action string, ok bool) {
	if c == nil {
		return
	}
	c.AdminMutations.WithLabelValues(action, strconv.FormatBool(ok)).Inc()
}

// Middleware records every request under its chi route pattern, so ids do not explode
// label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }
