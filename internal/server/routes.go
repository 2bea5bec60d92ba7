package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, m *Manager, broker *Broker, db *sql.DB, rdb *redis.Client, spaDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CapitalQuiz API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))

	r.Route("/api/game", func(r chi.Router) {
		r.Post("/start", handleStart(m))
		r.Get("/state", handleState(m))
		r.Get("/round", handleRound(m))
		r.Post("/answer", handleAnswer(m))
		r.Post("/rescue", handleRescue(m))
		r.Post("/reset", handleReset(m))
		r.Get("/events", handleEvents(broker))
	})

	r.Get("/ws/game", handleWSEvents(logger, broker))

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
