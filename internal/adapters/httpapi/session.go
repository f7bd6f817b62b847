package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/app"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/domain"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/httpjson"
)

type SessionHandler struct {
	sessions *app.SessionService
}

func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/session", h.get)
	r.Put("/session", h.put)
	r.Delete("/session", h.delete)
}

type sessionResponse struct {
	Authenticated bool                `json:"authenticated"`
	Profile       *domain.UserProfile `json:"profile,omitempty"`
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.sessions.Get(r.Context())
	if !ok {
		httpjson.Write(w, http.StatusOK, sessionResponse{})
		return
	}
	httpjson.Write(w, http.StatusOK, sessionResponse{Authenticated: p.Complete(), Profile: &p})
}

func (h *SessionHandler) put(w http.ResponseWriter, r *http.Request) {
	var p domain.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	saved, err := h.sessions.Set(r.Context(), p)
	if err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			httpjson.WriteFieldErrors(w, http.StatusBadRequest, "invalid profile", verr.Fields)
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, sessionResponse{Authenticated: true, Profile: &saved})
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireProfile refuse les routes API du catalogue tant qu'aucun profil n'est saisi.
func requireProfile(sessions *app.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions != nil && !sessions.IsAuthenticated(r.Context()) {
				httpjson.WriteError(w, http.StatusUnauthorized, "profile required (PUT /api/v1/session)")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
