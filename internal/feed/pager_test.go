package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	filter Filter
	page   int
	size   int
}

// fakeSource serves numbered items: total items across all pages.
type fakeSource struct {
	mu         sync.Mutex
	total      int
	totalPages int
	failOn     int
	calls      []call
}

func (s *fakeSource) fetch(_ context.Context, f Filter, page, size int) (Page[int], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{f, page, size})
	if s.failOn == page {
		return Page[int]{}, errors.New("upstream 500")
	}
	var items []int
	for i := (page - 1) * size; i < page*size && i < s.total; i++ {
		items = append(items, i)
	}
	return Page[int]{Items: items, TotalPages: s.totalPages}, nil
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestShortPageStopsFurtherRequests(t *testing.T) {
	src := &fakeSource{total: 13}
	p := New(9, src.fetch)
	p.Reset(Filter{Main: "서울"})
	ctx := context.Background()

	require.NoError(t, p.LoadNext(ctx))
	assert.True(t, p.Snapshot().HasMore)
	require.NoError(t, p.LoadNext(ctx))

	snap := p.Snapshot()
	assert.Len(t, snap.Items, 13)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 2, snap.Page)

	require.NoError(t, p.LoadNext(ctx))
	assert.Equal(t, 2, src.count(), "no request after a short page")
	assert.Equal(t, Filter{Main: "서울"}, src.calls[0].filter)
	assert.Equal(t, 9, src.calls[1].size)
}

func TestTotalPagesStopsOnFullLastPage(t *testing.T) {
	src := &fakeSource{total: 18, totalPages: 2}
	p := New(9, src.fetch)
	items, err := p.Drain(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, items, 18)
	assert.Equal(t, 2, src.count())
}

func TestResetKeepsOnlyFirstPage(t *testing.T) {
	src := &fakeSource{total: 30}
	p := New(9, src.fetch)
	ctx := context.Background()
	require.NoError(t, p.LoadNext(ctx))
	require.NoError(t, p.LoadNext(ctx))
	require.Len(t, p.Snapshot().Items, 18)

	p.Reset(Filter{Query: "박람회"})
	assert.Empty(t, p.Snapshot().Items)
	assert.Equal(t, StateIdle, p.State())

	require.NoError(t, p.LoadNext(ctx))
	snap := p.Snapshot()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, snap.Items)
	assert.Equal(t, 1, src.calls[len(src.calls)-1].page)
	assert.Equal(t, "박람회", src.calls[len(src.calls)-1].filter.Query)
}

func TestFailureFreezesAndKeepsItems(t *testing.T) {
	src := &fakeSource{total: 40, failOn: 2}
	p := New(9, src.fetch)
	ctx := context.Background()

	require.NoError(t, p.LoadNext(ctx))
	err := p.LoadNext(ctx)
	require.Error(t, err)

	snap := p.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Len(t, snap.Items, 9)
	assert.False(t, snap.HasMore)
	assert.EqualError(t, snap.Err, "upstream 500")
	assert.False(t, snap.Empty())

	require.NoError(t, p.LoadNext(ctx))
	assert.Equal(t, 2, src.count(), "frozen after failure")

	src.failOn = 0
	p.Reset(Filter{})
	require.NoError(t, p.LoadNext(ctx))
	assert.Equal(t, StateLoaded, p.State())
}

func TestZeroRecordsIsEmptyNotError(t *testing.T) {
	src := &fakeSource{total: 0}
	p := New(12, src.fetch)
	require.NoError(t, p.LoadNext(context.Background()))
	snap := p.Snapshot()
	assert.True(t, snap.Empty())
	assert.NoError(t, snap.Err)
	assert.False(t, snap.HasMore)
}

func TestInFlightGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var n int
	var mu sync.Mutex
	p := New(9, func(ctx context.Context, _ Filter, page, size int) (Page[int], error) {
		mu.Lock()
		n++
		mu.Unlock()
		close(started)
		<-release
		return Page[int]{Items: make([]int, size)}, nil
	})

	done := make(chan error, 1)
	go func() { done <- p.LoadNext(context.Background()) }()
	<-started
	assert.Equal(t, StateLoading, p.State())
	assert.ErrorIs(t, p.LoadNext(context.Background()), ErrInFlight)
	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestResetDiscardsStaleResponse(t *testing.T) {
	started := make(chan struct{})
	p := New(9, func(ctx context.Context, f Filter, page, size int) (Page[int], error) {
		if f.Main == "old" {
			close(started)
			<-ctx.Done()
			return Page[int]{Items: []int{99}}, ctx.Err()
		}
		return Page[int]{Items: []int{1}}, nil
	})
	p.Reset(Filter{Main: "old"})

	done := make(chan error, 1)
	go func() { done <- p.LoadNext(context.Background()) }()
	<-started
	p.Reset(Filter{Main: "new"})
	assert.ErrorIs(t, <-done, ErrStale)

	snap := p.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Items)

	require.NoError(t, p.LoadNext(context.Background()))
	assert.Equal(t, []int{1}, p.Snapshot().Items)
}

func TestResetFromStartsAtPage(t *testing.T) {
	src := &fakeSource{total: 30}
	p := New(9, src.fetch)
	p.ResetFrom(Filter{Main: "부산"}, 3)
	require.NoError(t, p.LoadNext(context.Background()))
	snap := p.Snapshot()
	assert.Equal(t, []int{18, 19, 20, 21, 22, 23, 24, 25, 26}, snap.Items)
	assert.Equal(t, 3, snap.Page)
	assert.True(t, snap.HasMore)
}

func TestDrainCap(t *testing.T) {
	src := &fakeSource{total: 100}
	p := New(10, src.fetch)
	items, err := p.Drain(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, items, 30)
	assert.Equal(t, 3, src.count())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "error", StateError.String())
}
