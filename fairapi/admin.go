package fairapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type AdminListParams struct {
	Search    string `json:"search"`
	Status    string `json:"status"`
	Category1 string `json:"category1"`
	Page      string `json:"page"`
	Size      string `json:"size"`
}

// AllRegions is the category1 value the API treats as "no region filter".
const AllRegions = "전체"

func (c *Client) ActiveFairsCount(ctx context.Context) (int, error) {
	var root struct {
		Active flexString `json:"active"`
	}
	if err := c.getJSON(ctx, "admin.fairs.active", "/admin/fairs/active", &root); err != nil {
		return 0, err
	}
	return root.Active.Int(0), nil
}

func (c *Client) ExpiredFairsCount(ctx context.Context) (int, error) {
	var root struct {
		Expired flexString `json:"expired"`
	}
	if err := c.getJSON(ctx, "admin.fairs.expired", "/admin/fairs/expired", &root); err != nil {
		return 0, err
	}
	return root.Expired.Int(0), nil
}

// FairCounts fetches active and expired counts one after the other.
func (c *Client) FairCounts(ctx context.Context) (FairCounts, error) {
	active, err := c.ActiveFairsCount(ctx)
	if err != nil {
		return FairCounts{}, err
	}
	expired, err := c.ExpiredFairsCount(ctx)
	if err != nil {
		return FairCounts{}, err
	}
	return FairCounts{Active: active, Expired: expired}, nil
}

func (c *Client) AddFair(ctx context.Context, f FairForm) error {
	return c.sendJSON(ctx, "admin.fairs.add", http.MethodPost, "/admin/fairs", f, nil)
}

func (c *Client) UpdateFair(ctx context.Context, id string, f FairForm) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("admin.fairs.update: empty id")
	}
	return c.sendJSON(ctx, "admin.fairs.update", http.MethodPut, "/admin/fairs/"+url.PathEscape(id), f, nil)
}

type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) DeleteFair(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	if strings.TrimSpace(id) == "" {
		return res, fmt.Errorf("admin.fairs.delete: empty id")
	}
	raw, err := c.do(ctx, "admin.fairs.delete", http.MethodDelete, "/admin/fairs/"+url.PathEscape(id), nil, "")
	if err != nil {
		return res, err
	}
	// some deployments answer 204 with no body
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := decode("admin.fairs.delete", raw, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *Client) AdminFairsList(ctx context.Context, p AdminListParams) (*FairsPage, error) {
	return c.fairsPage(ctx, "admin.fairs.list", "/admin/fairs/list", p)
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	raw, err := c.do(ctx, "admin.categories", http.MethodGet, "/admin/categories", nil, "")
	if err != nil {
		return nil, err
	}
	return decodeCategories("admin.categories", raw)
}

func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var root struct {
		Sites *[]Site `json:"sites"`
	}
	if err := c.getJSON(ctx, "admin.sites", "/admin/sites", &root); err != nil {
		return nil, err
	}
	if root.Sites == nil {
		return nil, fmt.Errorf("admin.sites: missing sites: %w", ErrMalformed)
	}
	return *root.Sites, nil
}

// UpdateStructuredData stores a JSON-LD object; data must already be valid JSON.
func (c *Client) UpdateStructuredData(ctx context.Context, siteID string, data json.RawMessage) error {
	body := map[string]json.RawMessage{"structured_data": data}
	return c.sendJSON(ctx, "admin.sites.structured_data", http.MethodPut, "/admin/sites/"+url.PathEscape(siteID)+"/structured-data", body, nil)
}

func (c *Client) UpdateSitemapXML(ctx context.Context, siteID, xml string) error {
	body := map[string]string{"sitemap_xml": xml}
	return c.sendJSON(ctx, "admin.sites.sitemap", http.MethodPut, "/admin/sites/"+url.PathEscape(siteID)+"/sitemap", body, nil)
}

func (c *Client) MetaTags(ctx context.Context, id int) (*MetaTags, error) {
	return c.metaTags(ctx, "admin.meta_tags", "/admin/meta-tags/"+strconv.Itoa(id))
}

func (c *Client) UpdateMetaTags(ctx context.Context, id int, m MetaTags) (*MetaTags, error) {
	var env metaEnvelope
	if err := c.sendJSON(ctx, "admin.meta_tags.update", http.MethodPut, "/admin/meta-tags/"+strconv.Itoa(id), m, &env); err != nil {
		return nil, err
	}
	return env.result("admin.meta_tags.update")
}
