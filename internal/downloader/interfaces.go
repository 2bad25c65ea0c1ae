package downloader

import "context"

// Downloader fetches a remote video to local disk.
type Downloader interface {
	// Available reports whether downloads can currently be attempted.
	Available() bool

	// Download saves the video at url to a file whose name starts with stem
	// and returns the file's path. The caller removes the file.
	Download(ctx context.Context, url, stem string) (string, error)
}
