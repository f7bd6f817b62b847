package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/app"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

type Server struct {
	logger   zerolog.Logger
	sessions *app.SessionService
	catalog  *app.PaginationController
	bus      ports.EventBus
	// ping est optionnel (ex: ping sqlite pour /health).
	ping func(ctx context.Context) error
}

func NewServer(logger zerolog.Logger, sessions *app.SessionService, catalog *app.PaginationController, bus ports.EventBus, ping func(ctx context.Context) error) *Server {
	return &Server{logger: logger, sessions: sessions, catalog: catalog, bus: bus, ping: ping}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		// SSE: flux long, hors timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultRequestTimeout))
			r.Get("/health", s.handleHealth)
			r.Get("/version", s.handleVersion)
			r.Get("/openapi.json", s.handleOpenAPI)

			if s.sessions != nil {
				NewSessionHandler(s.sessions).Routes(r)
			}
			if s.catalog != nil {
				NewCatalogHandler(s.catalog, s.sessions).Routes(r)
			}
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultRequestTimeout))
		NewPagesHandler(s.sessions, s.catalog).Routes(r)
	})

	return r
}
