package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/reelbot/internal/api/handler"
	mw "github.com/iconidentify/reelbot/internal/api/middleware"
)

// NewRouter creates the HTTP router for the metadata proxy.
func NewRouter(
	previewHandler *handler.PreviewHandler,
	healthHandler *handler.HealthHandler,
	uiHandler *handler.UIHandler,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Get("/", uiHandler.Index)
	r.Get("/default-thumbnail.jpg", uiHandler.Thumbnail)

	r.Get("/tg/{id}", previewHandler.Show)

	return r
}
