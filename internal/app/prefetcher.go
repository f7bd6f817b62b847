package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

// NextPagePrefetcher écoute les transitions du contrôleur et réchauffe le
// cache du client pour la page suivante dès qu'une page est chargée.
// Best-effort: un échec est seulement journalisé.
type NextPagePrefetcher struct {
	logger zerolog.Logger
	bus    ports.EventBus
	client *CatalogClient
}

func NewNextPagePrefetcher(logger zerolog.Logger, bus ports.EventBus, client *CatalogClient) *NextPagePrefetcher {
	return &NextPagePrefetcher{logger: logger, bus: bus, client: client}
}

func (p *NextPagePrefetcher) Run(ctx context.Context) {
	if p == nil || p.bus == nil || p.client == nil {
		return
	}
	ch, cancel := p.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("prefetcher stopped")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			p.handleEvent(ctx, evt)
		}
	}
}

func (p *NextPagePrefetcher) handleEvent(ctx context.Context, evt ports.Event) {
	if evt.Topic != TopicCatalogState {
		return
	}
	var st struct {
		Status PageStatus          `json:"status"`
		Data   *domain.CatalogPage `json:"data"`
	}
	if err := json.Unmarshal(evt.Payload, &st); err != nil {
		return
	}
	if st.Status != StatusLoaded || st.Data == nil || !st.Data.PageInfo.HasNextPage {
		return
	}

	info := st.Data.PageInfo
	next := info.CurrentPage + 1
	if _, ok := p.client.Cached(next, info.PerPage); ok {
		return
	}
	if _, err := p.client.FetchPage(ctx, next, info.PerPage); err != nil {
		p.logger.Debug().Err(err).Int("page", next).Msg("prefetch failed")
		return
	}
	p.logger.Debug().Int("page", next).Msg("next page prefetched")
}
