package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/app"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/httpjson"
)

type CatalogHandler struct {
	catalog  *app.PaginationController
	sessions *app.SessionService
}

func NewCatalogHandler(catalog *app.PaginationController, sessions *app.SessionService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, sessions: sessions}
}

func (h *CatalogHandler) Routes(r chi.Router) {
	r.Get("/catalog/window", h.window)

	r.Group(func(r chi.Router) {
		r.Use(requireProfile(h.sessions))
		r.Get("/catalog", h.page)
		r.Get("/catalog/state", h.state)
		r.Get("/catalog/items/{id}", h.item)
		r.Post("/catalog/navigate", h.navigate)
		r.Post("/catalog/retry", h.retry)
	})
}

// page suit ?page=N (même règle que l'URL du front) puis attend la fin du chargement.
func (h *CatalogHandler) page(w http.ResponseWriter, r *http.Request) {
	h.catalog.Navigate(app.PageFromQuery(r.URL.Query()))
	st, err := h.catalog.AwaitSettled(r.Context())
	if err != nil {
		httpjson.Write(w, http.StatusAccepted, st)
		return
	}
	writeState(w, st)
}

func (h *CatalogHandler) state(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.catalog.State())
}

func (h *CatalogHandler) item(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}
	st := h.catalog.State()
	if st.Data == nil {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	it, ok := st.Data.Item(id)
	if !ok {
		httpjson.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httpjson.Write(w, http.StatusOK, it)
}

type navigateRequest struct {
	Action string `json:"action"`
	Target int    `json:"target,omitempty"`
}

type navigateResponse struct {
	Page int    `json:"page"`
	URL  string `json:"url"`
	// Moved: false quand la demande est un no-op (page 1 / pas de page suivante).
	Moved bool `json:"moved"`
}

// navigate ne change pas l'état: il renvoie l'URL cible que le client doit suivre.
func (h *CatalogHandler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	target, moved, err := resolveTarget(h.catalog, req.Action, req.Target)
	if err != nil {
		code := "unknown_action"
		if errors.Is(err, app.ErrPageOutOfRange) {
			code = "page_out_of_range"
		}
		httpjson.WriteCodedError(w, http.StatusBadRequest, code, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, navigateResponse{
		Page:  target,
		URL:   app.PageURL(url.URL{Path: informationPath}, target),
		Moved: moved,
	})
}

func (h *CatalogHandler) retry(w http.ResponseWriter, r *http.Request) {
	if !h.catalog.Retry() {
		httpjson.WriteError(w, http.StatusConflict, "nothing to retry")
		return
	}
	st, err := h.catalog.AwaitSettled(r.Context())
	if err != nil {
		httpjson.Write(w, http.StatusAccepted, st)
		return
	}
	writeState(w, st)
}

func (h *CatalogHandler) window(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	current := app.ParsePage(q.Get("current"))
	last, err := strconv.Atoi(q.Get("last"))
	if err != nil || last < 1 {
		httpjson.WriteError(w, http.StatusBadRequest, "last must be a positive integer")
		return
	}
	maxVisible, _ := strconv.Atoi(q.Get("max"))
	httpjson.Write(w, http.StatusOK, app.PageWindow(current, last, maxVisible))
}

func writeState(w http.ResponseWriter, st app.PageState) {
	if st.Status == app.StatusFailed {
		httpjson.Write(w, http.StatusBadGateway, st)
		return
	}
	httpjson.Write(w, http.StatusOK, st)
}

var errUnknownAction = errors.New("unknown action (prev, next, jump)")

// resolveTarget calcule la page cible d'une action de navigation.
func resolveTarget(ctrl *app.PaginationController, action string, target int) (int, bool, error) {
	switch action {
	case "prev", "previous":
		p, ok := ctrl.Previous()
		return p, ok, nil
	case "next":
		p, ok := ctrl.Next()
		return p, ok, nil
	case "jump":
		p, err := ctrl.Jump(target)
		if err != nil {
			return 0, false, err
		}
		return p, true, nil
	default:
		return 0, false, errUnknownAction
	}
}
