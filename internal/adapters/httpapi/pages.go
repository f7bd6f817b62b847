package httpapi

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/app"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/buildinfo"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
)

const (
	informationPath = "/information"

	// homeRedirectAfter: délai avant de continuer vers le catalogue quand un profil existe.
	homeRedirectAfter = 2
	// loadingRefreshAfter: rechargement de la page pendant un chargement.
	loadingRefreshAfter = 1
	// loadingWait borne l'attente d'un fetch avant de rendre le squelette.
	loadingWait = 3 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = mustParsePages("home", "profile", "catalog")

// mustParsePages associe chaque page au layout et aux partiels communs.
func mustParsePages(names ...string) map[string]*template.Template {
	base := template.Must(template.New("layout.html").ParseFS(templateFS,
		"templates/layout.html",
		"templates/partials.html",
	))
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t := template.Must(base.Clone())
		out[name] = template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
	}
	return out
}

type PagesHandler struct {
	sessions *app.SessionService
	catalog  *app.PaginationController
}

func NewPagesHandler(sessions *app.SessionService, catalog *app.PaginationController) *PagesHandler {
	return &PagesHandler{sessions: sessions, catalog: catalog}
}

func (h *PagesHandler) Routes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/profile", h.profileForm)
	r.Post("/profile", h.saveProfile)
	r.Post("/logout", h.logout)

	r.Get(informationPath, h.information)
	r.Get(informationPath+"/{id}", h.detail)
	r.Post(informationPath+"/navigate", h.navigate)
	r.Post(informationPath+"/retry", h.retry)
}

// layoutView: données communes (header, footer, rafraîchissement).
type layoutView struct {
	Title        string
	Profile      *domain.UserProfile
	RefreshAfter int
	RefreshURL   string
	Version      string
}

type homeView struct {
	layoutView
}

type profileView struct {
	layoutView
	Form    domain.UserProfile
	Errors  map[string]string
	Next    string
	Editing bool
}

type cardView struct {
	Item domain.CatalogItem
	URL  string
}

type windowLinkView struct {
	app.PageLink
	URL string
}

type catalogView struct {
	layoutView
	Status   app.PageStatus
	Page     int
	Loading  bool
	Failed   bool
	Stale    bool
	Error    string
	Cards    []cardView
	Skeleton []int
	Summary  string
	Window   []windowLinkView
	LastPage int
	HasPrev  bool
	HasNext  bool
	Selected *domain.CatalogItem
	CloseURL string
}

func (h *PagesHandler) layout(ctx context.Context, title string) layoutView {
	v := layoutView{Title: title, Version: buildinfo.Current().Version}
	if h.sessions != nil {
		if p, ok := h.sessions.Get(ctx); ok && p.Complete() {
			v.Profile = &p
		}
	}
	return v
}

func (h *PagesHandler) home(w http.ResponseWriter, r *http.Request) {
	v := homeView{layoutView: h.layout(r.Context(), "Welcome")}
	if v.Profile != nil {
		v.RefreshAfter = homeRedirectAfter
		v.RefreshURL = informationPath
	}
	h.render(w, r, http.StatusOK, "home", v)
}

func (h *PagesHandler) profileForm(w http.ResponseWriter, r *http.Request) {
	v := profileView{
		layoutView: h.layout(r.Context(), "Your information"),
		Next:       safeNext(r.URL.Query().Get("next")),
	}
	if v.Profile != nil {
		v.Form = *v.Profile
		v.Editing = true
	}
	h.render(w, r, http.StatusOK, "profile", v)
}

func (h *PagesHandler) saveProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := domain.UserProfile{
		DisplayName: r.PostForm.Get("displayName"),
		RoleLabel:   r.PostForm.Get("roleLabel"),
	}
	next := safeNext(r.PostForm.Get("next"))

	_, err := h.sessions.Set(r.Context(), form)
	if err != nil {
		var verr *app.ValidationError
		if !errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		v := profileView{
			layoutView: h.layout(r.Context(), "Your information"),
			Form:       form,
			Errors:     verr.Fields,
			Next:       next,
		}
		v.Editing = v.Profile != nil
		h.render(w, r, http.StatusBadRequest, "profile", v)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *PagesHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("logout: clear session")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PagesHandler) information(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	page := app.PageFromQuery(r.URL.Query())
	h.renderCatalog(w, r, page, nil)
}

func (h *PagesHandler) detail(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	page := app.PageFromQuery(r.URL.Query())
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.renderCatalog(w, r, page, &id)
}

// navigate convertit une action de pagination en redirection vers ?page=T;
// c'est la requête suivante qui déclenche le chargement.
func (h *PagesHandler) navigate(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	current := h.catalog.State().Page
	if current < 1 {
		current = 1
	}
	target, _ := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("target")))
	next, moved, err := resolveTarget(h.catalog, r.PostForm.Get("action"), target)
	if err != nil || !moved {
		// Saut invalide: on reste sur la page courante.
		next = current
	}
	http.Redirect(w, r, app.PageURL(url.URL{Path: informationPath}, next), http.StatusSeeOther)
}

func (h *PagesHandler) retry(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	h.catalog.Retry()
	page := h.catalog.State().Page
	http.Redirect(w, r, app.PageURL(url.URL{Path: informationPath}, page), http.StatusSeeOther)
}

// guard rend le formulaire de profil tant que la session est incomplète.
func (h *PagesHandler) guard(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog == nil {
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return false
	}
	if h.sessions.IsAuthenticated(r.Context()) {
		return true
	}
	v := profileView{
		layoutView: h.layout(r.Context(), "Your information"),
		Next:       safeNext(r.URL.RequestURI()),
	}
	if r.Method != http.MethodGet {
		v.Next = informationPath
	}
	h.render(w, r, http.StatusOK, "profile", v)
	return false
}

func (h *PagesHandler) renderCatalog(w http.ResponseWriter, r *http.Request, page int, selectedID *int) {
	h.catalog.Navigate(page)

	ctx, cancel := context.WithTimeout(r.Context(), loadingWait)
	defer cancel()
	st, _ := h.catalog.AwaitSettled(ctx)

	self := url.URL{Path: informationPath}
	v := catalogView{
		layoutView: h.layout(r.Context(), "Anime Information"),
		Status:     st.Status,
		Page:       st.Page,
		CloseURL:   app.PageURL(self, st.Page),
	}

	data := st.Data
	switch st.Status {
	case app.StatusLoading, app.StatusIdle:
		v.Loading = true
		v.RefreshAfter = loadingRefreshAfter
		v.RefreshURL = r.URL.RequestURI()
		data = st.Previous
		if data == nil {
			v.Skeleton = make([]int, h.catalog.PerPage())
		}
	case app.StatusFailed:
		v.Failed = true
		v.Error = st.Error
	case app.StatusLoadedStale:
		v.Stale = true
	}

	status := http.StatusOK
	if data != nil {
		v.Cards = make([]cardView, 0, len(data.Items))
		for _, it := range data.Items {
			v.Cards = append(v.Cards, cardView{Item: it, URL: itemURL(it.ID, st.Page)})
		}
		v.Summary = data.PageInfo.Summary()
		v.LastPage = data.PageInfo.LastPage
		v.HasPrev = data.PageInfo.CurrentPage > 1
		v.HasNext = data.PageInfo.HasNextPage
		for _, l := range st.Window {
			wl := windowLinkView{PageLink: l}
			if !l.Ellipsis {
				wl.URL = app.PageURL(self, l.Page)
			}
			v.Window = append(v.Window, wl)
		}
		if selectedID != nil {
			if it, ok := data.Item(*selectedID); ok {
				v.Selected = &it
			} else if !v.Loading {
				status = http.StatusNotFound
			}
		}
	}
	if v.Failed {
		status = http.StatusBadGateway
	}
	h.render(w, r, status, "catalog", v)
}

func (h *PagesHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := pageTemplates[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("page", name).Msg("render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func itemURL(id, page int) string {
	return app.PageURL(url.URL{Path: fmt.Sprintf("%s/%d", informationPath, id)}, page)
}

// safeNext n'accepte que des chemins locaux (pas de redirection ouverte).
func safeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return informationPath
	}
	return raw
}
