package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookline-ai/bookline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Handler        *Handler
	BusinessSecret string
	MetricsHandler http.Handler
}

// NewRouter creates a Chi router with all routes configured. Chat routes
// are tenant-scoped by header; business routes require a JWT whose
// subject is the business id.
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Handler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Customer-facing conversation routes.
	r.Route("/chat/{chatRoomID}", func(room chi.Router) {
		room.Use(RequireBusinessID)
		room.Post("/turns", cfg.Handler.ProcessTurn)
		room.Post("/confirm", cfg.Handler.ConfirmDraft)
		room.Get("/appointments", cfg.Handler.ListChatAppointments)
		room.Get("/appointments/{appointmentID}", cfg.Handler.GetAppointment)
	})

	// Business-side routes.
	if cfg.BusinessSecret != "" {
		r.Route("/business", func(business chi.Router) {
			business.Use(BusinessJWT(cfg.BusinessSecret))
			business.Get("/appointments", cfg.Handler.ListBusinessAppointments)
			business.Put("/chat/{chatRoomID}/appointments/{appointmentID}/status", cfg.Handler.TransitionStatus)
		})
	}

	return r
}
