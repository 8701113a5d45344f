// Package router assembles the HTTP surface of the response engine.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/attunehealth/attune/internal/http/handlers"
	httpmiddleware "github.com/attunehealth/attune/internal/http/middleware"
	"github.com/attunehealth/attune/internal/webchat"
	"github.com/attunehealth/attune/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *handlers.ChatHandler
	EmotionHandler     *handlers.EmotionHandler
	SessionHandler     *handlers.SessionHandler
	WebchatHandler     *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat/message", cfg.ChatHandler.HandleMessage)
		api.Post("/emotion/detect", cfg.EmotionHandler.HandleDetect)

		api.Route("/session", func(s chi.Router) {
			s.Post("/", cfg.SessionHandler.HandleCreate)
			s.Get("/{sessionID}/history", cfg.SessionHandler.HandleHistory)
			s.Get("/{sessionID}/emotions", cfg.SessionHandler.HandleEmotions)
			s.Get("/{sessionID}/stats", cfg.SessionHandler.HandleStats)
		})
	})

	if cfg.WebchatHandler != nil {
		r.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
	}

	return r
}
