package fairapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) MainCities(ctx context.Context) ([]City, error) {
	var out []City
	if err := c.getJSON(ctx, "cities.main", "/cities/main", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubCities(ctx context.Context, mainID string) ([]City, error) {
	var root struct {
		SubCities *[]City `json:"sub_cities"`
	}
	if err := c.getJSON(ctx, "cities.sub", "/cities/sub/"+url.PathEscape(mainID), &root); err != nil {
		return nil, err
	}
	if root.SubCities == nil {
		return nil, fmt.Errorf("cities.sub: missing sub_cities: %w", ErrMalformed)
	}
	return *root.SubCities, nil
}

// AllSubCities returns every main city with its sub cities in one call.
func (c *Client) AllSubCities(ctx context.Context) ([]Category, error) {
	raw, err := c.do(ctx, "cities.all", http.MethodGet, "/cities/sub/all", nil, "")
	if err != nil {
		return nil, err
	}
	return decodeCategories("cities.all", raw)
}
