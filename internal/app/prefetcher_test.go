package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/adapters/memorybus"
)

func TestNextPagePrefetcher_WarmsNextPage(t *testing.T) {
	src := newFakeSource(10)
	bus := memorybus.New()
	defer bus.Close()
	client := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})
	ctrl := NewPaginationController(context.Background(), zerolog.Nop(), client, bus, PaginationOptions{PerPage: 20})
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewNextPagePrefetcher(zerolog.Nop(), bus, client).Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Laisse le prefetcher s'abonner avant la première transition.
	time.Sleep(20 * time.Millisecond)
	ctrl.Navigate(4)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := client.Cached(5, 20); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("page 5 was not prefetched")
}

func TestNextPagePrefetcher_SkipsLastPage(t *testing.T) {
	src := newFakeSource(3)
	client := NewCatalogClient(zerolog.Nop(), src, CatalogClientOptions{})
	p := NewNextPagePrefetcher(zerolog.Nop(), memorybus.New(), client)

	p.handleEvent(context.Background(), eventFor(t, PageState{Status: StatusLoaded, Page: 3, Data: ptr(samplePage(3, 20, 3))}))
	if src.calls.Load() != 0 {
		t.Fatalf("nothing to prefetch after the last page")
	}
}
