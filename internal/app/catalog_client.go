package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

const (
	defaultMaxCachedPages = 128
	defaultFreshFor       = 5 * time.Minute
)

type CatalogClientOptions struct {
	// Limiter est optionnel; nil = pas de plafond.
	Limiter *FetchLimiter
	// MaxCachedPages borne le cache last-known-good (0 = défaut).
	MaxCachedPages int
	// FreshFor: durée pendant laquelle FetchPage sert le cache sans réseau
	// (0 = défaut, négatif = toujours interroger le service).
	FreshFor time.Duration
}

type cachedPage struct {
	page      domain.CatalogPage
	fetchedAt time.Time
}

type pageKey struct {
	page    int
	perPage int
}

func (k pageKey) String() string { return fmt.Sprintf("%d:%d", k.page, k.perPage) }

// CatalogClient est le client distant du catalogue:
//   - une seule requête réseau par couple (page, perPage) en vol, partagée entre appelants;
//   - le dernier résultat réussi de chaque couple est gardé, et resservi sans
//     réseau par FetchPage tant qu'il a moins de FreshFor;
//   - un échec avec résultat connu renvoie la page en cache marquée Stale + l'erreur.
//
// Aucun retry automatique: relancer est une décision de l'appelant.
type CatalogClient struct {
	logger  zerolog.Logger
	source  ports.CatalogSource
	limiter *FetchLimiter
	group   singleflight.Group

	mu         sync.Mutex
	lastGood   map[pageKey]cachedPage
	order      []pageKey
	maxEntries int
	freshFor   time.Duration
	now        func() time.Time
}

func NewCatalogClient(logger zerolog.Logger, source ports.CatalogSource, opts CatalogClientOptions) *CatalogClient {
	maxEntries := opts.MaxCachedPages
	if maxEntries <= 0 {
		maxEntries = defaultMaxCachedPages
	}
	freshFor := opts.FreshFor
	if freshFor == 0 {
		freshFor = defaultFreshFor
	}
	return &CatalogClient{
		logger:     logger,
		source:     source,
		limiter:    opts.Limiter,
		lastGood:   map[pageKey]cachedPage{},
		maxEntries: maxEntries,
		freshFor:   freshFor,
		now:        time.Now,
	}
}

// FetchPage renvoie la page demandée, depuis le cache si elle est encore
// fraîche. Sur échec l'erreur est une *FetchError; si une page connue existe
// pour ce couple elle est renvoyée avec Stale=true.
func (c *CatalogClient) FetchPage(ctx context.Context, page, perPage int) (domain.CatalogPage, error) {
	if page < 1 || perPage <= 0 {
		return domain.CatalogPage{}, fmt.Errorf("%w: page=%d perPage=%d", ErrPageOutOfRange, page, perPage)
	}
	if cached, ok := c.fresh(pageKey{page: page, perPage: perPage}); ok {
		return cached, nil
	}
	return c.RefreshPage(ctx, page, perPage)
}

// RefreshPage interroge toujours le service distant (retry utilisateur).
func (c *CatalogClient) RefreshPage(ctx context.Context, page, perPage int) (domain.CatalogPage, error) {
	if page < 1 || perPage <= 0 {
		return domain.CatalogPage{}, fmt.Errorf("%w: page=%d perPage=%d", ErrPageOutOfRange, page, perPage)
	}
	key := pageKey{page: page, perPage: perPage}

	// Le fetch partagé ne dépend pas de l'annulation d'un appelant particulier.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		return c.fetch(shared, key)
	})

	select {
	case <-ctx.Done():
		return domain.CatalogPage{}, ctx.Err()
	case res := <-ch:
		out, _ := res.Val.(domain.CatalogPage)
		return out, res.Err
	}
}

// Cached renvoie la dernière page réussie pour ce couple, sans réseau.
func (c *CatalogClient) Cached(page, perPage int) (domain.CatalogPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lastGood[pageKey{page: page, perPage: perPage}]
	return e.page, ok
}

func (c *CatalogClient) fresh(key pageKey) (domain.CatalogPage, bool) {
	if c.freshFor < 0 {
		return domain.CatalogPage{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lastGood[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.freshFor {
		return domain.CatalogPage{}, false
	}
	return e.page, true
}

func (c *CatalogClient) fetch(ctx context.Context, key pageKey) (domain.CatalogPage, error) {
	fetchID := xid.New().String()
	logger := c.logger.With().Str("fetch_id", fetchID).Int("page", key.page).Int("per_page", key.perPage).Logger()

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return c.fail(logger, key, err)
		}
		defer c.limiter.Release()
	}

	start := time.Now()
	page, err := c.source.Page(ctx, key.page, key.perPage)
	if err != nil {
		return c.fail(logger, key, err)
	}
	page.Stale = false
	c.remember(key, page)
	logger.Debug().Dur("duration", time.Since(start)).Int("items", len(page.Items)).Msg("catalog page fetched")
	return page, nil
}

func (c *CatalogClient) fail(logger zerolog.Logger, key pageKey, err error) (domain.CatalogPage, error) {
	fe := asFetchError(err)
	if cached, ok := c.Cached(key.page, key.perPage); ok {
		cached.Stale = true
		logger.Warn().Err(fe).Msg("catalog refresh failed, serving stale page")
		return cached, fe
	}
	logger.Warn().Err(fe).Str("code", fe.Code).Msg("catalog fetch failed")
	return domain.CatalogPage{}, fe
}

func (c *CatalogClient) remember(key pageKey, page domain.CatalogPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lastGood[key]; !ok {
		c.order = append(c.order, key)
	}
	c.lastGood[key] = cachedPage{page: page, fetchedAt: c.now()}
	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.lastGood, oldest)
	}
}
