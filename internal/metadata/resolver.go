// Package metadata resolves Instagram post IDs to social preview data.
package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/iconidentify/reelbot/internal/config"
	"github.com/iconidentify/reelbot/internal/domain"
)

const (
	// PlaceholderImagePath is served by the proxy when a post has no preview image.
	PlaceholderImagePath = "/default-thumbnail.jpg"

	defaultTitle       = "Instagram"
	defaultDescription = "View this post on Instagram"

	maxBodySize = 2 << 20
)

var mediaIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Resolver fetches and caches post metadata.
type Resolver struct {
	cfg     config.MetadataConfig
	client  *http.Client
	cache   *gocache.Cache
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

// NewResolver creates a resolver. client may be nil.
func NewResolver(cfg config.MetadataConfig, client *http.Client, logger *slog.Logger) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Resolver{
		cfg:     cfg,
		client:  client,
		cache:   gocache.New(cfg.TTL, 2*cfg.TTL),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
	}
}

// ValidID reports whether id looks like an Instagram shortcode.
func ValidID(id string) bool {
	return mediaIDPattern.MatchString(id)
}

// Resolve returns metadata for the post with the given ID. It returns
// domain.ErrInvalidMediaID for malformed IDs and domain.ErrMetadataNotFound
// when the page cannot be fetched.
func (r *Resolver) Resolve(ctx context.Context, id string) (*domain.Metadata, error) {
	if !ValidID(id) {
		return nil, domain.ErrInvalidMediaID
	}

	if v, ok := r.cache.Get(id); ok {
		m := v.(*domain.Metadata)
		if m.Fresh(r.now(), r.cfg.TTL) {
			return m, nil
		}
	}

	// The fetch is shared by every waiter on id, so it must outlive the
	// request that happened to start it. fetch applies its own timeout.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(id, func() (any, error) {
		m, err := r.fetch(shared, id)
		if err != nil {
			return nil, err
		}
		r.cache.Set(id, m, gocache.DefaultExpiration)
		return m, nil
	})
	if err != nil {
		r.logger.Warn("metadata fetch failed", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataNotFound, err)
	}
	return v.(*domain.Metadata), nil
}

// CachedCount returns the number of cached entries, including expired ones
// not yet evicted.
func (r *Resolver) CachedCount() int {
	return r.cache.ItemCount()
}

// PostURL returns the canonical page URL for id.
func (r *Resolver) PostURL(id string) string {
	return r.cfg.BaseURL + "/p/" + id + "/"
}

func (r *Resolver) fetch(ctx context.Context, id string) (*domain.Metadata, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	pageURL := r.PostURL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req, r.cfg.UserAgent)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	og := parseOG(io.LimitReader(resp.Body, maxBodySize))

	r.logger.Debug("metadata fetched",
		"id", id,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r.build(id, og), nil
}

// build applies fallbacks and sanitizes every text field.
func (r *Resolver) build(id string, og *ogData) *domain.Metadata {
	m := &domain.Metadata{
		Key:         id,
		Title:       sanitize(og.Title),
		Description: sanitize(og.Description),
		ImageURL:    sanitize(og.ImageURL),
		VideoURL:    sanitize(og.VideoURL),
		SourceURL:   r.PostURL(id),
		FetchedAt:   r.now(),
	}

	if m.Title == "" {
		m.Title = sanitize(og.PageTitle)
	}
	if m.Title == "" {
		m.Title = defaultTitle
	}
	if m.Description == "" {
		m.Description = defaultDescription
	}
	if m.ImageURL == "" {
		m.ImageURL = PlaceholderImagePath
	}

	switch {
	case m.VideoURL == "":
		m.VideoURL = r.cfg.BaseURL + "/p/" + id + "/embed/"
		m.VideoMimeType = "text/html"
	case og.VideoType != "":
		m.VideoMimeType = sanitize(og.VideoType)
	default:
		m.VideoMimeType = "video/mp4"
	}

	return m
}

func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
