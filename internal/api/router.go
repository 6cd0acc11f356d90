package api

import (
	"log/slog"
	"net/http"

	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/api/middleware"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/metrics"
	"github.com/dom/stream-games/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/swaggest/swgui/v5emb"
)

func NewRouter(services *service.Services, hub *broadcast.Hub, m *metrics.Metrics, checks map[string]handlers.Checker, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger(logger, m))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, cfg, logger)
	predictionHandler := handlers.NewPredictionHandler(services.Prediction, hub, logger)
	tournamentHandler := handlers.NewTournamentHandler(services.Tournament, logger)
	streamHandler := handlers.NewStreamHandler(hub, services.Prediction, services.Tournament)
	healthHandler := handlers.NewHealthHandler(checks, logger)

	guessLimiter := middleware.NewIPRateLimiter(cfg.GuessRatePerWindow, cfg.GuessRateWindow)
	joinLimiter := middleware.NewIPRateLimiter(cfg.JoinRatePerWindow, cfg.JoinRateWindow)
	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRatePerWindow, cfg.LoginRateWindow)
	operatorAuth := middleware.OperatorAuth(services.Auth, logger)

	// Infrastructure
	r.Get("/healthz", healthHandler.Check)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Stream Games API", "/openapi.json", "/docs"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginLimiter)).Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(operatorAuth)
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Viewer-facing routes behind the shared app key
		r.Route("/public", func(r chi.Router) {
			r.Use(middleware.AppKey(cfg.PublicAppKey))

			r.Route("/prediction", func(r chi.Router) {
				r.Get("/state", predictionHandler.State)
				r.Get("/stream", predictionHandler.OverlayStream)
				r.Get("/ws", predictionHandler.OverlayWS)
				r.With(middleware.RateLimit(guessLimiter)).Post("/guess", predictionHandler.Guess)
			})

			r.Route("/tournament", func(r chi.Router) {
				r.Get("/state", tournamentHandler.PublicState)
				r.With(middleware.RateLimit(joinLimiter)).Post("/join", tournamentHandler.Join)
			})
		})

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(operatorAuth)

			r.Get("/stream", streamHandler.Global)
			r.Get("/stream/ws", streamHandler.GlobalWS)

			r.Route("/prediction", func(r chi.Router) {
				r.Post("/open", predictionHandler.Open)
				r.Post("/close", predictionHandler.Close)
				r.Post("/clear", predictionHandler.Clear)
				r.Post("/winners", predictionHandler.Winners)
				r.Get("/state", predictionHandler.State)
				r.Get("/console", predictionHandler.Console)
				r.Get("/console/stream", predictionHandler.ConsoleStream)
			})

			r.Route("/tournament", func(r chi.Router) {
				r.Post("/start", tournamentHandler.Start)
				r.Post("/close-phase", tournamentHandler.ClosePhase)
				r.Post("/decide", tournamentHandler.Decide)
				r.Post("/open-next", tournamentHandler.OpenNext)
				r.Post("/finish", tournamentHandler.Finish)
				r.Patch("/teams", tournamentHandler.UpdateTeams)
				r.Patch("/points", tournamentHandler.SetPoints)
				r.Get("/current", tournamentHandler.Current)
				r.Get("/winners", tournamentHandler.Winners)
			})
		})
	})

	return r
}
