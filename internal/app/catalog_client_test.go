package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
)

// fakeSource sert des pages synthétiques; block retient les appels jusqu'à fermeture.
type fakeSource struct {
	calls    atomic.Int32
	lastPage int

	mu      sync.Mutex
	failing map[int]error
	block   map[int]chan struct{}
	started chan int
}

func newFakeSource(lastPage int) *fakeSource {
	return &fakeSource{lastPage: lastPage, failing: map[int]error{}, block: map[int]chan struct{}{}}
}

func (f *fakeSource) fail(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[page] = err
}

func (f *fakeSource) heal(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failing, page)
}

func (f *fakeSource) hold(page int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.block[page] = ch
	return ch
}

func (f *fakeSource) Page(ctx context.Context, page, perPage int) (domain.CatalogPage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.block[page]
	started := f.started
	f.mu.Unlock()
	if started != nil {
		started <- page
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.CatalogPage{}, ctx.Err()
		}
	}

	f.mu.Lock()
	err := f.failing[page]
	f.mu.Unlock()
	if err != nil {
		return domain.CatalogPage{}, err
	}
	return samplePage(page, perPage, f.lastPage), nil
}

func samplePage(page, perPage, lastPage int) domain.CatalogPage {
	items := make([]domain.CatalogItem, 0, perPage)
	for i := 0; i < perPage; i++ {
		id := (page-1)*perPage + i + 1
		items = append(items, domain.CatalogItem{ID: id, Title: domain.Title{Romaji: "Anime"}})
	}
	return domain.CatalogPage{
		Items: items,
		PageInfo: domain.PageInfo{
			Total:       lastPage * perPage,
			CurrentPage: page,
			LastPage:    lastPage,
			HasNextPage: page < lastPage,
			PerPage:     perPage,
		},
	}
}

func TestCatalogClient_SingleFlightSharesOutcome(t *testing.T) {
	src := newFakeSource(10)
	src.started = make(chan int, 4)
	gate := src.hold(2)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})

	type result struct {
		page domain.CatalogPage
		err  error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			p, err := c.FetchPage(context.Background(), 2, 20)
			results <- result{p, err}
		}()
		if i == 0 {
			<-src.started
		}
	}
	// Laisse le second appelant rejoindre le vol en cours.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("FetchPage: %v", r.err)
		}
		if r.page.PageInfo.CurrentPage != 2 {
			t.Fatalf("unexpected page %d", r.page.PageInfo.CurrentPage)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected 1 remote call, got %d", got)
	}
}

func TestCatalogClient_FailureWithoutHistoryIsFetchError(t *testing.T) {
	src := newFakeSource(10)
	src.fail(1, errors.New("connection refused"))
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})

	page, err := c.FetchPage(context.Background(), 1, 20)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Code != FetchCodeNetwork {
		t.Fatalf("unexpected code %q", fe.Code)
	}
	if page.Stale || len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestCatalogClient_FailureAfterSuccessServesStale(t *testing.T) {
	src := newFakeSource(10)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})
	ctx := context.Background()

	if _, err := c.FetchPage(ctx, 3, 20); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	src.fail(3, &FetchError{Code: FetchCodeHTTP, Message: "anilist http error: 500"})

	page, err := c.RefreshPage(ctx, 3, 20)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Code != FetchCodeHTTP {
		t.Fatalf("expected http FetchError, got %v", err)
	}
	if !page.Stale || page.PageInfo.CurrentPage != 3 || len(page.Items) != 20 {
		t.Fatalf("expected stale page 3, got stale=%v page=%d", page.Stale, page.PageInfo.CurrentPage)
	}

	src.heal(3)
	page, err = c.RefreshPage(ctx, 3, 20)
	if err != nil || page.Stale {
		t.Fatalf("expected fresh page after recovery, got stale=%v err=%v", page.Stale, err)
	}
}

func TestCatalogClient_StaleIsPerPair(t *testing.T) {
	src := newFakeSource(10)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})
	ctx := context.Background()
	_, _ = c.FetchPage(ctx, 3, 20)

	src.fail(3, errors.New("boom"))
	if page, err := c.FetchPage(ctx, 3, 10); err == nil || page.Stale {
		t.Fatalf("a different perPage must not reuse the cached page (stale=%v err=%v)", page.Stale, err)
	}
}

func TestCatalogClient_RejectsInvalidArguments(t *testing.T) {
	src := newFakeSource(10)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})
	if _, err := c.FetchPage(context.Background(), 0, 20); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("invalid requests must not reach the remote service")
	}
}

func TestCatalogClient_CacheIsBounded(t *testing.T) {
	src := newFakeSource(10)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{MaxCachedPages: 2})
	ctx := context.Background()
	for _, p := range []int{1, 2, 3} {
		if _, err := c.FetchPage(ctx, p, 20); err != nil {
			t.Fatalf("FetchPage(%d): %v", p, err)
		}
	}
	if _, ok := c.Cached(1, 20); ok {
		t.Fatalf("oldest page should have been evicted")
	}
	if _, ok := c.Cached(3, 20); !ok {
		t.Fatalf("newest page should be cached")
	}
}

func TestCatalogClient_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	src := newFakeSource(10)
	src.started = make(chan int, 2)
	gate := src.hold(4)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{Limiter: NewFetchLimiter(1)})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.FetchPage(ctx, 4, 20)
		errc <- err
	}()
	<-src.started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(gate)
	page, err := c.FetchPage(context.Background(), 4, 20)
	if err != nil || page.PageInfo.CurrentPage != 4 {
		t.Fatalf("expected page 4, got %v", err)
	}
}

func TestCatalogClient_FreshPageServedWithoutNetwork(t *testing.T) {
	src := newFakeSource(10)
	c := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{FreshFor: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = c.FetchPage(ctx, 1, 20)
	_, _ = c.FetchPage(ctx, 1, 20)
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected cached second read, got %d calls", got)
	}

	now = now.Add(2 * time.Minute)
	_, _ = c.FetchPage(ctx, 1, 20)
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected expired entry to be refetched, got %d calls", got)
	}

	_, _ = c.RefreshPage(ctx, 1, 20)
	if got := src.calls.Load(); got != 3 {
		t.Fatalf("RefreshPage must always hit the service, got %d calls", got)
	}
}
