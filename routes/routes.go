package routes

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-divisions/handlers"
	"github.com/Dosada05/tournament-divisions/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Division  *handlers.DivisionHandler
	Bracket   *handlers.BracketHandler
	Match     *handlers.MatchHandler
	WebSocket *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/rules", h.Division.Rules)

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Post("/divisions", h.Division.GenerateDivisions)
		r.Get("/divisions", h.Division.ListDivisions)
		r.Post("/brackets", h.Bracket.GenerateTournamentBrackets)
	})

	router.Route("/divisions/{divisionID}", func(r chi.Router) {
		r.Get("/", h.Division.GetDivision)
		r.Post("/bracket", h.Bracket.GenerateBracket)
		r.Get("/bracket", h.Bracket.GetBracket)
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Post("/start", h.Match.StartMatch)
		r.Post("/result", h.Match.RecordResult)
	})

	router.Route("/ws", func(r chi.Router) {
		r.Get("/divisions/{divisionID}", h.WebSocket.ServeDivision)
		r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
	})
}
