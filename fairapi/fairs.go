package fairapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FairsParams filters the region listings. The API expects every field as a string.
type FairsParams struct {
	Main string `json:"main"`
	Sub  string `json:"sub"`
	Type string `json:"type"`
	Page string `json:"page"`
	Size string `json:"size"`
}

type SearchParams struct {
	Search string `json:"search"`
	Type   string `json:"type,omitempty"`
	Page   string `json:"page"`
	Size   string `json:"size"`
}

func NewFairsParams(main, sub, typ string, page, size int) FairsParams {
	return FairsParams{Main: main, Sub: sub, Type: typ, Page: itoa(page), Size: itoa(size)}
}

func NewSearchParams(query, typ string, page, size int) SearchParams {
	return SearchParams{Search: query, Type: typ, Page: itoa(page), Size: itoa(size)}
}

// MainCategoryFairs lists fairs of a main region (POST /fairs/main).
func (c *Client) MainCategoryFairs(ctx context.Context, p FairsParams) (*FairsPage, error) {
	return c.fairsPage(ctx, "fairs.main", "/fairs/main", p)
}

// SubCategoryFairs lists fairs of a sub region (POST /fairs/sub).
func (c *Client) SubCategoryFairs(ctx context.Context, p FairsParams) (*FairsPage, error) {
	return c.fairsPage(ctx, "fairs.sub", "/fairs/sub", p)
}

func (c *Client) SearchFairs(ctx context.Context, p SearchParams) (*FairsPage, error) {
	return c.fairsPage(ctx, "fairs.search", "/fairs/search", p)
}

func (c *Client) fairsPage(ctx context.Context, op, path string, body any) (*FairsPage, error) {
	raw, err := c.do(ctx, op, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}
	return decodeFairsPage(op, raw)
}

func (c *Client) FairByID(ctx context.Context, id string) (*Fair, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("fairs.get: empty id")
	}
	var f Fair
	if err := c.getJSON(ctx, "fairs.get", "/fairs/"+url.PathEscape(id), &f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		return nil, fmt.Errorf("fairs.get: missing id: %w", ErrMalformed)
	}
	return &f, nil
}
