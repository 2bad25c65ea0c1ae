package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewCacheKey(t *testing.T) {
	tests := []struct {
		provider Provider
		id       string
		want     CacheKey
	}{
		{ProviderInstagram, "ABC123", "instagram:ABC123"},
		{ProviderYouTube, "dQw4w9WgXcQ", "youtube:dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		if got := NewCacheKey(tt.provider, tt.id); got != tt.want {
			t.Errorf("NewCacheKey(%q, %q) = %q, want %q", tt.provider, tt.id, got, tt.want)
		}
	}
}

func TestVideoReference_Key(t *testing.T) {
	a := VideoReference{Provider: ProviderInstagram, VideoID: "XYZ", SourceURL: "https://instagram.com/reel/XYZ"}
	b := VideoReference{Provider: ProviderInstagram, VideoID: "XYZ", SourceURL: "https://www.instagram.com/p/XYZ/?igsh=1"}

	if a.Key() != b.Key() {
		t.Errorf("same provider and id should share a key: %q vs %q", a.Key(), b.Key())
	}
}

func TestCacheKey_FileStem(t *testing.T) {
	tests := []struct {
		key  CacheKey
		want string
	}{
		{"instagram:ABC123", "instagram_ABC123"},
		{"youtube:a-b_c", "youtube_a-b_c"},
		{"youtube:../etc", "youtube____etc"},
		{"youtube:a*b?[c]", "youtube_a_b__c_"},
	}

	for _, tt := range tests {
		if got := tt.key.FileStem(); got != tt.want {
			t.Errorf("FileStem(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestMetadata_Fresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &Metadata{FetchedAt: now.Add(-4 * time.Minute)}

	if !m.Fresh(now, 5*time.Minute) {
		t.Error("metadata fetched 4m ago should be fresh with a 5m TTL")
	}

	m.FetchedAt = now.Add(-5 * time.Minute)
	if m.Fresh(now, 5*time.Minute) {
		t.Error("metadata fetched exactly TTL ago should be stale")
	}
}

func TestLinkError(t *testing.T) {
	err := NewLinkError("youtube:abc", "download", ErrDownloadFailed)

	if got, want := err.Error(), "download [youtube:abc]: video download failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrDownloadFailed) {
		t.Error("LinkError should unwrap to the wrapped sentinel")
	}

	noKey := NewLinkError("", "compress", ErrBitrateTooLow)
	if got, want := noKey.Error(), "compress: target bitrate below minimum"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseCacheKey(t *testing.T) {
	tests := []struct {
		in      string
		want    CacheKey
		wantErr bool
	}{
		{"youtube:dQw4w9WgXcQ", "youtube:dQw4w9WgXcQ", false},
		{"instagram:Cx1_-a", "instagram:Cx1_-a", false},
		{"youtube:", "", true},
		{"youtube", "", true},
		{"vimeo:123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCacheKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCacheKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCacheKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
