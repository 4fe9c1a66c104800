package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-events/internal/analytics"
	"ms-events/internal/auth"
	"ms-events/internal/config"
	events "ms-events/internal/events/service"
	"ms-events/internal/i18n"
	"ms-events/internal/logger"
	participation "ms-events/internal/participation/service"
	"ms-events/internal/qr"
	"ms-events/internal/sse"
)

// Server holds everything the HTTP handlers need.
type Server struct {
	Events        *events.EventService
	Participation *participation.Manager
	Analytics     *analytics.Service
	Emitter       *sse.ParticipantEventEmitter
	Translator    *i18n.Translator
	QR            *qr.QRGenerator
	Verifier      auth.Verifier
	Logger        *logger.Logger
	App           config.AppConfig
	Auth          config.AuthConfig
	Location      *time.Location
	Now           func() time.Time
	// CSRFKey authenticates CSRF tokens; 32 bytes.
	CSRFKey []byte
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now().In(s.Location)
	}
	return s.Now().In(s.Location)
}

// Router wires every route of the web application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(auth.Middleware(s.Verifier, s.Auth.CookieName, s.Logger))
	r.Use(s.localize)

	r.Get("/healthz", s.health)
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(s.csrfProtect())
		r.Get("/events", s.apiListEvents)
		r.Get("/events/{id}", s.apiGetEvent)
		r.Post("/events/{id}/participation", s.apiToggleParticipation)
		r.Get("/events/{id}/analytics", s.apiEventAnalytics)
	})

	// --- Pages ---
	r.Group(func(r chi.Router) {
		r.Use(s.csrfProtect())

		r.Get("/", s.home)
		r.Get("/categories", s.categories)
		r.Get("/events", s.listEvents)
		r.Get("/events/{id}", s.eventDetail)
		r.Get("/events/{id}/qr.png", s.eventQR)
		r.Get("/events/{id}/participants/stream", s.participantStream)
		r.Post("/events/{id}/participation", s.toggleParticipation)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(s.Auth.LoginURL))

			r.Get("/events/create", s.createForm)
			r.Post("/events", s.createEvent)
			r.Get("/events/{id}/edit", s.editForm)
			r.Post("/events/{id}/edit", s.updateEvent)
			r.Post("/events/{id}/delete", s.deleteEvent)
			r.Get("/dashboard", s.dashboard)
		})
	})

	r.NotFound(s.notFound)
	return r
}
