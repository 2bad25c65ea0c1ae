package handler

import (
	"net/http"

	"github.com/iconidentify/reelbot/pkg/ui"
)

// UIHandler serves the static pages and images of the proxy.
type UIHandler struct{}

// NewUIHandler creates a new UI handler.
func NewUIHandler() *UIHandler {
	return &UIHandler{}
}

// Index serves the landing page.
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(ui.IndexHTML)
}

// Thumbnail serves the placeholder preview image.
func (h *UIHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(ui.ThumbnailSVG)
}
