package domain

import "time"

// Metadata is the social preview data rendered by the proxy for one post.
type Metadata struct {
	Key           string
	Title         string
	Description   string
	ImageURL      string
	VideoURL      string
	VideoMimeType string
	SourceURL     string
	FetchedAt     time.Time
}

// Fresh reports whether the metadata is younger than ttl at now.
func (m *Metadata) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(m.FetchedAt) < ttl
}
