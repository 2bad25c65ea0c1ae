package domain

import "errors"

// Domain errors.
var (
	// ErrCacheMiss is returned when no artifact is cached for a key.
	ErrCacheMiss = errors.New("artifact not cached")

	// ErrDownloaderUnavailable is returned when the video downloader cannot be used.
	ErrDownloaderUnavailable = errors.New("video downloader unavailable")

	// ErrDownloadFailed is returned when the video download fails.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrCompressionFailed is returned when re-encoding a video fails.
	ErrCompressionFailed = errors.New("video compression failed")

	// ErrBitrateTooLow is returned when a video is too long to fit the size budget.
	ErrBitrateTooLow = errors.New("target bitrate below minimum")

	// ErrFrameExtractionFailed is returned when a preview frame cannot be extracted.
	ErrFrameExtractionFailed = errors.New("frame extraction failed")

	// ErrDeliveryFailed is returned when the chat transport rejects a video.
	ErrDeliveryFailed = errors.New("video delivery failed")

	// ErrMetadataNotFound is returned when a post page cannot be resolved.
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrInvalidMediaID is returned when a proxy request carries a malformed ID.
	ErrInvalidMediaID = errors.New("invalid media ID")
)

// LinkError wraps an error with the cache key of the link being processed.
type LinkError struct {
	Key CacheKey
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	if e.Key != "" {
		return e.Op + " [" + e.Key.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// NewLinkError creates a new LinkError.
func NewLinkError(key CacheKey, op string, err error) *LinkError {
	return &LinkError{
		Key: key,
		Op:  op,
		Err: err,
	}
}
