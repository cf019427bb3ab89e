// Package auth signs admins in against the hosted auth service (password grant).
package auth

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
)

var ErrInvalidCredentials = errors.New("auth: invalid email or password")

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Grant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type Provider struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

func NewProvider(baseURL, apiKey string, timeout time.Duration) *Provider {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if timeout > 0 {
		rc.HTTPClient.Timeout = timeout
	}
	return &Provider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: rc}
}

// SignIn exchanges email and password for an access token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Grant, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: sign in: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("auth: sign in: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var g Grant
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("auth: decode grant: %w", err)
	}
	if g.AccessToken == "" {
		return nil, errors.New("auth: grant without access token")
	}
	return &g, nil
}

// SignOut revokes the access token upstream. Failures are returned but callers
// usually only log them; the local session is dropped either way.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth: sign out: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("auth: sign out: status %d", resp.StatusCode)
	}
	return nil
}
