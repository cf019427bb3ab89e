// Package feed keeps the state of a paged listing: which page comes next, what has been
// accumulated so far, and whether more pages may exist.
package feed

import (
	"context"
	"errors"
	"sync"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

var (
	// ErrInFlight is returned by LoadNext when a page request is already outstanding.
	ErrInFlight = errors.New("feed: page request already in flight")
	// ErrStale is returned when the filter was reset while the request was running.
	ErrStale = errors.New("feed: response discarded after reset")
)

type Filter struct {
	Main  string
	Sub   string
	Type  string
	Query string
}

type Page[T any] struct {
	Items []T
	// TotalPages is 0 when the backend did not report it.
	TotalPages int
}

type FetchFunc[T any] func(ctx context.Context, f Filter, page, size int) (Page[T], error)

type Pager[T any] struct {
	fetch FetchFunc[T]
	size  int

	mu         sync.Mutex
	filter     Filter
	items      []T
	next       int
	loaded     int
	totalPages int
	exhausted  bool
	state      State
	err        error
	gen        uint64
	inFlight   bool
	cancel     context.CancelFunc
}

func New[T any](size int, fetch FetchFunc[T]) *Pager[T] {
	if size <= 0 {
		size = 9
	}
	return &Pager[T]{fetch: fetch, size: size, next: 1}
}

// Reset switches to a new filter and starts over at page 1.
func (p *Pager[T]) Reset(f Filter) { p.ResetFrom(f, 1) }

// ResetFrom switches to a new filter and makes page the next one requested.
// An outstanding request is cancelled and its result dropped.
func (p *Pager[T]) ResetFrom(f Filter, page int) {
	if page < 1 {
		page = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.filter = f
	p.items = nil
	p.next = page
	p.loaded = 0
	p.totalPages = 0
	p.exhausted = false
	p.state = StateIdle
	p.err = nil
	p.inFlight = false
}

// LoadNext requests the next page once. It is a no-op when there is nothing more to
// load or after a failure; only Reset clears a failure.
func (p *Pager[T]) LoadNext(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrInFlight
	}
	if p.exhausted || p.state == StateError {
		p.mu.Unlock()
		return nil
	}
	page, f, gen := p.next, p.filter, p.gen
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.inFlight = true
	p.state = StateLoading
	p.mu.Unlock()

	res, err := p.fetch(ctx, f, page, p.size)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return ErrStale
	}
	p.inFlight = false
	p.cancel = nil
	if err != nil {
		p.state = StateError
		p.err = err
		return err
	}
	if page == 1 {
		p.items = append([]T(nil), res.Items...)
	} else {
		p.items = append(p.items, res.Items...)
	}
	p.loaded = page
	p.next = page + 1
	if res.TotalPages > 0 {
		p.totalPages = res.TotalPages
	}
	if len(res.Items) < p.size || (p.totalPages > 0 && page >= p.totalPages) {
		p.exhausted = true
	}
	p.state = StateLoaded
	return nil
}

// Drain loads pages until the listing is exhausted or maxPages pages were loaded
// (0 means no cap), and returns everything accumulated.
func (p *Pager[T]) Drain(ctx context.Context, maxPages int) ([]T, error) {
	for n := 0; maxPages <= 0 || n < maxPages; n++ {
		if !p.Snapshot().HasMore {
			break
		}
		if err := ctx.Err(); err != nil {
			return p.Snapshot().Items, err
		}
		if err := p.LoadNext(ctx); err != nil {
			return p.Snapshot().Items, err
		}
	}
	return p.Snapshot().Items, nil
}

type Snapshot[T any] struct {
	Filter     Filter
	Items      []T
	Page       int // last loaded page, 0 before the first load
	TotalPages int
	HasMore    bool
	State      State
	Err        error
}

// Empty reports a completed load that produced no records, as opposed to a failure.
func (s Snapshot[T]) Empty() bool {
	return s.State == StateLoaded && len(s.Items) == 0
}

func (p *Pager[T]) Snapshot() Snapshot[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot[T]{
		Filter:     p.filter,
		Items:      append([]T(nil), p.items...),
		Page:       p.loaded,
		TotalPages: p.totalPages,
		HasMore:    !p.exhausted && p.state != StateError,
		State:      p.state,
		Err:        p.err,
	}
}

func (p *Pager[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
