package domain

import (
	"fmt"
	"strings"
)

// Provider identifies the platform a video link points to.
type Provider string

const (
	ProviderInstagram Provider = "instagram"
	ProviderYouTube   Provider = "youtube"
)

// String returns the string representation of the Provider.
func (p Provider) String() string {
	return string(p)
}

// VideoReference is a recognized video link found in a chat message.
// Two references with the same provider and ID are the same video.
type VideoReference struct {
	Provider  Provider
	VideoID   string
	SourceURL string
}

// Key returns the cache key for the referenced video.
func (r VideoReference) Key() CacheKey {
	return NewCacheKey(r.Provider, r.VideoID)
}

// CacheKey identifies a delivered artifact as "provider:videoId".
type CacheKey string

// NewCacheKey composes a cache key from provider and video ID.
func NewCacheKey(provider Provider, videoID string) CacheKey {
	return CacheKey(provider.String() + ":" + videoID)
}

// ParseCacheKey validates s as "provider:videoId" for a known provider.
func ParseCacheKey(s string) (CacheKey, error) {
	provider, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("cache key %q: want provider:videoId", s)
	}
	switch Provider(provider) {
	case ProviderInstagram, ProviderYouTube:
	default:
		return "", fmt.Errorf("cache key %q: unknown provider %q", s, provider)
	}
	return NewCacheKey(Provider(provider), id), nil
}

// String returns the string representation of the CacheKey.
func (k CacheKey) String() string {
	return string(k)
}

// FileStem returns a filesystem-safe name derived from the key, suitable
// for temporary files. Anything outside [A-Za-z0-9_-] becomes an underscore.
func (k CacheKey) FileStem() string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, string(k))
}

// CacheEntry records a video that has already been delivered.
// ArtifactHandle is opaque to everything except the delivery transport.
type CacheEntry struct {
	Key            CacheKey
	ArtifactHandle string
	Caption        string
}
