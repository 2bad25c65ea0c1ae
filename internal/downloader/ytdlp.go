package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/reelbot/internal/config"
	"github.com/iconidentify/reelbot/internal/domain"
)

// runFunc executes one yt-dlp download writing to the output template.
type runFunc func(ctx context.Context, url, output string) error

// YtDlpDownloader downloads videos with the yt-dlp binary.
type YtDlpDownloader struct {
	cfg    config.DownloadConfig
	logger *slog.Logger
	run    runFunc
}

// NewYtDlpDownloader creates a downloader that shells out to yt-dlp.
func NewYtDlpDownloader(cfg config.DownloadConfig, logger *slog.Logger) *YtDlpDownloader {
	d := &YtDlpDownloader{cfg: cfg, logger: logger}
	d.run = d.runYtDlp
	return d
}

// Available reports whether the yt-dlp binary can be found.
func (d *YtDlpDownloader) Available() bool {
	_, err := exec.LookPath(d.cfg.BinaryPath)
	return err == nil
}

// Download fetches url into stem.<ext> and returns the resulting path.
func (d *YtDlpDownloader) Download(ctx context.Context, url, stem string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(stem), 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := d.run(ctx, url, stem+".%(ext)s"); err != nil {
		// yt-dlp may leave fragments behind on failure.
		removeMatches(stem)
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	path, err := findOutput(stem)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	d.logger.Debug("download complete",
		"url", url,
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

func (d *YtDlpDownloader) runYtDlp(ctx context.Context, url, output string) error {
	dl := ytdlp.New().
		SetExecutable(d.cfg.BinaryPath).
		Format(d.cfg.Format).
		MergeOutputFormat("mp4").
		NoPlaylist().
		NoProgress().
		Output(output)

	result, err := dl.Run(ctx, url)
	if err != nil {
		if result != nil && result.Stderr != "" {
			return fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// findOutput locates the finished file written for stem, skipping partial
// downloads.
func findOutput(stem string) (string, error) {
	matches, err := filepath.Glob(globPattern(stem))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("no output file for %s", filepath.Base(stem))
}

func removeMatches(stem string) {
	matches, _ := filepath.Glob(globPattern(stem))
	for _, m := range matches {
		os.Remove(m)
	}
}

// globPattern assumes stem carries no glob metacharacters, which
// domain.CacheKey.FileStem guarantees.
func globPattern(stem string) string {
	return stem + ".*"
}
