package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/reelbot/internal/domain"
	"github.com/iconidentify/reelbot/pkg/ui"
)

// MetadataResolver looks up the social preview for a post.
type MetadataResolver interface {
	Resolve(ctx context.Context, id string) (*domain.Metadata, error)
}

// PreviewHandler renders Open Graph preview pages for Instagram posts.
type PreviewHandler struct {
	resolver MetadataResolver
	baseURL  string
	logger   *slog.Logger
}

// NewPreviewHandler creates a preview handler. baseURL is the public origin
// of the proxy; when empty it is derived from each request.
func NewPreviewHandler(resolver MetadataResolver, baseURL string, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// Show handles GET /tg/{id}.
func (h *PreviewHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meta, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMetadataNotFound) || errors.Is(err, domain.ErrInvalidMediaID) {
			h.logger.Info("preview not found", "id", id, "error", err)
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		h.logger.Error("resolve preview failed", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	page := *meta
	origin := h.origin(r)
	page.ImageURL = absoluteURL(origin, page.ImageURL)
	page.VideoURL = absoluteURL(origin, page.VideoURL)

	var buf bytes.Buffer
	if err := ui.PreviewTemplate.Execute(&buf, &page); err != nil {
		h.logger.Error("render preview failed", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(buf.Bytes())
}

func (h *PreviewHandler) origin(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// absoluteURL prefixes root-relative paths with origin.
func absoluteURL(origin, u string) string {
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
		return origin + u
	}
	return u
}
