package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

// TopicCatalogState est publié sur le bus à chaque transition du contrôleur.
const TopicCatalogState = "catalog.state"

type PageStatus string

const (
	StatusIdle        PageStatus = "idle"
	StatusLoading     PageStatus = "loading"
	StatusLoaded      PageStatus = "loaded"
	StatusLoadedStale PageStatus = "loaded_stale"
	StatusFailed      PageStatus = "failed"
)

// PageState est un instantané immuable du contrôleur.
type PageState struct {
	Status PageStatus `json:"status"`
	// Page demandée (celle de l'URL).
	Page int `json:"page"`
	// Data: page affichée (Loaded / LoadedStale).
	Data *domain.CatalogPage `json:"data,omitempty"`
	// Previous: données encore affichables pendant un Loading.
	Previous  *domain.CatalogPage `json:"previous,omitempty"`
	Err       error               `json:"-"`
	Error     string              `json:"error,omitempty"`
	ErrorCode string              `json:"errorCode,omitempty"`
	Window    []PageLink          `json:"window,omitempty"`
	Version   uint64              `json:"version"`
}

// PageFetcher est implémenté par *CatalogClient.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int) (domain.CatalogPage, error)
	RefreshPage(ctx context.Context, page, perPage int) (domain.CatalogPage, error)
}

type PaginationOptions struct {
	PerPage         int
	MaxVisiblePages int
}

// PaginationController suit l'état de navigation (le paramètre page de l'URL)
// et pilote le client catalogue. Il ne change jamais de page de lui-même:
// Previous/Next/Jump calculent une cible que l'appelant écrit dans l'URL, et
// c'est le Navigate qui en découle qui déclenche la transition.
//
// Seule la réponse correspondant à la page actuellement désirée (et au
// dernier fetch lancé) est appliquée; les réponses obsolètes sont ignorées.
type PaginationController struct {
	logger     zerolog.Logger
	fetcher    PageFetcher
	bus        ports.EventBus
	perPage    int
	maxVisible int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   PageState
	gen     uint64
	changed chan struct{}
}

func NewPaginationController(parent context.Context, logger zerolog.Logger, fetcher PageFetcher, bus ports.EventBus, opts PaginationOptions) *PaginationController {
	if parent == nil {
		parent = context.Background()
	}
	if opts.PerPage <= 0 {
		opts.PerPage = domain.DefaultPerPage
	}
	if opts.MaxVisiblePages <= 0 {
		opts.MaxVisiblePages = DefaultMaxVisiblePages
	}
	ctx, cancel := context.WithCancel(parent)
	return &PaginationController{
		logger:     logger,
		fetcher:    fetcher,
		bus:        bus,
		perPage:    opts.PerPage,
		maxVisible: opts.MaxVisiblePages,
		ctx:        ctx,
		cancel:     cancel,
		state:      PageState{Status: StatusIdle, Page: domain.DefaultPage},
		changed:    make(chan struct{}),
	}
}

func (c *PaginationController) PerPage() int { return c.perPage }

func (c *PaginationController) State() PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Navigate applique un changement externe de l'état de navigation.
// Sans effet si page est déjà la page demandée.
func (c *PaginationController) Navigate(page int) PageState {
	if page < 1 {
		page = domain.DefaultPage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != StatusIdle && c.state.Page == page {
		return c.state
	}
	c.startLocked(page, c.displayedLocked(), false)
	return c.state
}

// Retry relance le fetch de la page demandée (Failed, LoadedStale, ou un
// simple rafraîchissement depuis Loaded). Sans effet en Idle/Loading.
func (c *PaginationController) Retry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Status {
	case StatusFailed, StatusLoadedStale, StatusLoaded:
		c.startLocked(c.state.Page, c.displayedLocked(), true)
		return true
	default:
		return false
	}
}

// Previous renvoie la page précédente, ok=false en page 1.
func (c *PaginationController) Previous() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.state.Page
	if c.state.Data != nil {
		cur = c.state.Data.PageInfo.CurrentPage
	}
	if cur <= 1 {
		return cur, false
	}
	return cur - 1, true
}

// Next renvoie la page suivante si le service distant annonce hasNextPage.
func (c *PaginationController) Next() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Data == nil {
		return c.state.Page, false
	}
	info := c.state.Data.PageInfo
	if !info.HasNextPage {
		return info.CurrentPage, false
	}
	return info.CurrentPage + 1, true
}

// Jump valide une cible choisie par l'utilisateur. Hors de [1, lastPage]
// (ou lastPage encore inconnu) la demande est rejetée avec ErrPageOutOfRange.
func (c *PaginationController) Jump(target int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shown := c.state.Data
	if shown == nil {
		shown = c.state.Previous
	}
	if shown == nil || target < 1 || target > shown.PageInfo.LastPage {
		return 0, ErrPageOutOfRange
	}
	return target, nil
}

// AwaitSettled bloque tant que l'état est Loading.
func (c *PaginationController) AwaitSettled(ctx context.Context) (PageState, error) {
	for {
		c.mu.Lock()
		st := c.state
		wait := c.changed
		c.mu.Unlock()
		if st.Status != StatusLoading {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-wait:
		}
	}
}

// Close arrête les fetchs en cours et attend leur fin.
func (c *PaginationController) Close() {
	c.cancel()
	c.wg.Wait()
}

// displayedLocked renvoie les données actuellement visibles, s'il y en a.
func (c *PaginationController) displayedLocked() *domain.CatalogPage {
	if c.state.Data != nil {
		return c.state.Data
	}
	return c.state.Previous
}

func (c *PaginationController) startLocked(page int, previous *domain.CatalogPage, refresh bool) {
	c.gen++
	gen := c.gen
	c.setLocked(PageState{Status: StatusLoading, Page: page, Previous: previous})

	fetch := c.fetcher.FetchPage
	if refresh {
		fetch = c.fetcher.RefreshPage
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		result, err := fetch(c.ctx, page, c.perPage)
		c.finish(page, gen, result, err)
	}()
}

func (c *PaginationController) finish(page int, gen uint64, result domain.CatalogPage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Page != page || c.gen != gen {
		c.logger.Debug().Int("page", page).Int("wanted", c.state.Page).Msg("discarding outdated catalog response")
		return
	}
	if err != nil && c.ctx.Err() != nil {
		return
	}

	if err == nil {
		c.setLocked(PageState{Status: StatusLoaded, Page: page, Data: &result})
		return
	}

	stale := c.staleFor(page, result)
	next := PageState{Page: page, Err: err, Error: err.Error()}
	var fe *FetchError
	if errors.As(err, &fe) {
		next.ErrorCode = fe.Code
	}
	if stale != nil {
		next.Status = StatusLoadedStale
		next.Data = stale
	} else {
		next.Status = StatusFailed
	}
	c.setLocked(next)
}

// staleFor choisit les données à garder après un échec: la page servie par le
// cache du client, sinon la page précédemment affichée si c'est la même page.
func (c *PaginationController) staleFor(page int, result domain.CatalogPage) *domain.CatalogPage {
	if result.Stale {
		return &result
	}
	if prev := c.state.Previous; prev != nil && prev.PageInfo.CurrentPage == page {
		cp := *prev
		cp.Stale = true
		return &cp
	}
	return nil
}

func (c *PaginationController) setLocked(next PageState) {
	next.Version = c.state.Version + 1
	if next.Data != nil {
		info := next.Data.PageInfo
		next.Window = PageWindow(info.CurrentPage, info.LastPage, c.maxVisible)
	}
	c.state = next

	close(c.changed)
	c.changed = make(chan struct{})

	if c.bus != nil {
		if b, err := json.Marshal(next); err == nil {
			c.bus.Publish(TopicCatalogState, b)
		}
	}
	c.logger.Debug().Str("status", string(next.Status)).Int("page", next.Page).Uint64("version", next.Version).Msg("catalog state")
}
