package fairapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Observer receives one call per upstream request (status 0 on transport failure).
type Observer interface {
	ObserveUpstream(op string, status int, d time.Duration)
}

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RetryMax of 0 sends every request exactly once.
	RetryMax int
	// RateLimit caps outbound requests per second; 0 disables the limiter.
	RateLimit  float64
	HTTPClient *http.Client
	Observer   Observer
}

// Client talks to the fair directory API with a fixed base URL and a static bearer token.
type Client struct {
	baseURL  string
	token    string
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	observer Observer
}

func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	// keep the final response so non-2xx statuses reach the caller intact
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}

	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.Token,
		http:     rc,
		observer: opts.Observer,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, op, method, path string, in any, accept string) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := ioReadAllLimit(resp.Body, 64<<10)
		return nil, &Error{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	b, err := ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return b, nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, time.Since(start))
	}
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	raw, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decode(op, raw, out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, in, out any) error {
	raw, err := c.do(ctx, op, method, path, in, "")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(op, raw, out)
}

func decode(op string, raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%s: empty body: %w", op, ErrMalformed)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
