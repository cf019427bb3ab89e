package fairapi

import (
	"context"

	"github.com/yourorg/fair-web/internal/feed"
)

// MainFeed pages through POST /fairs/main for a pager's Main/Type filter.
func MainFeed(c *Client) feed.FetchFunc[Fair] {
	return func(ctx context.Context, f feed.Filter, page, size int) (feed.Page[Fair], error) {
		return toPage(c.MainCategoryFairs(ctx, NewFairsParams(f.Main, f.Sub, f.Type, page, size)))
	}
}

// SubFeed pages through POST /fairs/sub.
func SubFeed(c *Client) feed.FetchFunc[Fair] {
	return func(ctx context.Context, f feed.Filter, page, size int) (feed.Page[Fair], error) {
		return toPage(c.SubCategoryFairs(ctx, NewFairsParams(f.Main, f.Sub, f.Type, page, size)))
	}
}

func SearchFeed(c *Client) feed.FetchFunc[Fair] {
	return func(ctx context.Context, f feed.Filter, page, size int) (feed.Page[Fair], error) {
		return toPage(c.SearchFairs(ctx, NewSearchParams(f.Query, f.Type, page, size)))
	}
}

func toPage(p *FairsPage, err error) (feed.Page[Fair], error) {
	if err != nil {
		return feed.Page[Fair]{}, err
	}
	return feed.Page[Fair]{Items: p.Fairs, TotalPages: p.TotalPages}, nil
}
