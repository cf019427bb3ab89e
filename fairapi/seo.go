package fairapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// StructuredData returns the JSON-LD text stored for a site ("" when none is set).
func (c *Client) StructuredData(ctx context.Context, siteID string) (string, error) {
	var root struct {
		StructuredData json.RawMessage `json:"structured_data"`
	}
	if err := c.getJSON(ctx, "seo.structured_data", "/seo/structured-data/"+url.PathEscape(siteID), &root); err != nil {
		return "", err
	}
	if s := rawToText(root.StructuredData); s != nil {
		return *s, nil
	}
	return "", nil
}

// SitemapXML fetches the stored sitemap document as raw text.
func (c *Client) SitemapXML(ctx context.Context, siteID string) (string, error) {
	raw, err := c.do(ctx, "seo.sitemap", http.MethodGet, "/seo/sitemap/"+url.PathEscape(siteID), nil, "application/xml")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Client) PublicMetaTags(ctx context.Context, id int) (*MetaTags, error) {
	return c.metaTags(ctx, "seo.meta_tags", "/seo/meta-tags/"+strconv.Itoa(id))
}

type metaEnvelope struct {
	Meta  *MetaTags `json:"meta"`
	Error string    `json:"error"`
}

func (e metaEnvelope) result(op string) (*MetaTags, error) {
	if e.Meta != nil {
		return e.Meta, nil
	}
	if e.Error != "" {
		return nil, fmt.Errorf("%s: %w", op, errors.Join(ErrMalformed, errors.New(e.Error)))
	}
	return nil, fmt.Errorf("%s: missing meta: %w", op, ErrMalformed)
}

func (c *Client) metaTags(ctx context.Context, op, path string) (*MetaTags, error) {
	var env metaEnvelope
	if err := c.getJSON(ctx, op, path, &env); err != nil {
		return nil, err
	}
	return env.result(op)
}
