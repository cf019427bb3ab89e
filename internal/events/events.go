package events

import (
	"context"
	"time"
)

// SiteChanged is published after a site's sitemap or structured data was written upstream.
type SiteChanged struct {
	SiteID string
	What   string // "sitemap" or "structured_data"
	At     time.Time
}

type Publisher interface {
	PublishSiteChanged(ctx context.Context, evt SiteChanged)
	SubscribeSiteChanged() <-chan SiteChanged
}

type inMemory struct{ ch chan SiteChanged }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan SiteChanged, buffer)}
}

// PublishSiteChanged never blocks; events are dropped when the buffer is full.
func (m *inMemory) PublishSiteChanged(_ context.Context, evt SiteChanged) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribeSiteChanged() <-chan SiteChanged { return m.ch }
