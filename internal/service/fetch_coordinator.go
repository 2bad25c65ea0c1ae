package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/iconidentify/reelbot/internal/config"
	"github.com/iconidentify/reelbot/internal/domain"
	"github.com/iconidentify/reelbot/internal/downloader"
	"github.com/iconidentify/reelbot/internal/links"
	"github.com/iconidentify/reelbot/pkg/ffmpeg"
)

// UnavailableNotice is sent at most once per message when downloads cannot
// be attempted.
const UnavailableNotice = "Video downloads are unavailable right now. Please try again later."

// errLinkPanic marks a link whose processing panicked. It maps to the
// generic failure notice.
var errLinkPanic = errors.New("panic while processing link")

// Transcoder shrinks oversized videos and samples preview frames.
type Transcoder interface {
	Compress(ctx context.Context, path string, targetBytes int64) (string, error)
	ExtractFrame(ctx context.Context, path string) (string, error)
}

// Captioner produces a short description of an image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string) (string, error)
}

// Transport delivers results to the chat that asked for them.
type Transport interface {
	SendTyping(ctx context.Context, chatID int64) error
	SendVideo(ctx context.Context, chatID int64, src domain.VideoSource, caption string) (*domain.Delivery, error)
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// CoordinatorConfig holds the limits used by FetchCoordinator.
type CoordinatorConfig struct {
	TempPath        string
	MinFreeBytes    int64
	MaxUploadBytes  int64
	TargetSizeBytes int64
	SingleFlight    bool
}

// NewCoordinatorConfig collects coordinator settings from the application config.
func NewCoordinatorConfig(cfg *config.Config) CoordinatorConfig {
	return CoordinatorConfig{
		TempPath:        cfg.Storage.TempPath,
		MinFreeBytes:    cfg.Storage.MinFreeBytes,
		MaxUploadBytes:  cfg.Transcode.MaxUploadBytes,
		TargetSizeBytes: cfg.Transcode.TargetSizeBytes,
		SingleFlight:    cfg.Bot.SingleFlight,
	}
}

// FetchCoordinator turns chat messages containing video links into video
// deliveries. Each link is answered from the artifact cache when possible,
// otherwise downloaded, compressed when over the upload limit, delivered
// and cached.
type FetchCoordinator struct {
	cache      *ArtifactCache
	downloader downloader.Downloader
	transcoder Transcoder
	captioner  Captioner
	transport  Transport
	cfg        CoordinatorConfig
	logger     *slog.Logger

	inflight  singleflight.Group
	diskSpace func(dir string) (int64, error)
}

// NewFetchCoordinator creates a coordinator. captioner may be nil, which
// disables captions.
func NewFetchCoordinator(
	cache *ArtifactCache,
	dl downloader.Downloader,
	transcoder Transcoder,
	captioner Captioner,
	transport Transport,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *FetchCoordinator {
	if cfg.TempPath == "" {
		cfg.TempPath = filepath.Join(os.TempDir(), "reelbot")
	}
	return &FetchCoordinator{
		cache:      cache,
		downloader: dl,
		transcoder: transcoder,
		captioner:  captioner,
		transport:  transport,
		cfg:        cfg,
		logger:     logger,
		diskSpace:  freeDiskSpace,
	}
}

// fetchResult is shared between callers waiting on the same key.
type fetchResult struct {
	handle  string
	caption string
}

// HandleMessage processes every supported link in msg, in order. Failures
// are reported to the chat per link and never stop the remaining links.
func (c *FetchCoordinator) HandleMessage(ctx context.Context, msg domain.Message) {
	refs := links.Extract(msg.Text)
	if len(refs) == 0 {
		return
	}

	logger := c.logger.With("chat_id", msg.ChatID, "trace_id", msg.TraceID)
	logger.Info("message has video links", "links", len(refs))

	if err := c.transport.SendTyping(ctx, msg.ChatID); err != nil {
		logger.Debug("typing signal failed", "error", err)
	}

	unavailableSent := false
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		c.processLink(ctx, msg.ChatID, ref, &unavailableSent, logger.With("cache_key", ref.Key()))
	}
}

func (c *FetchCoordinator) processLink(ctx context.Context, chatID int64, ref domain.VideoReference, unavailableSent *bool, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			c.reportFailure(ctx, chatID, ref, panicError(r, logger), logger)
		}
	}()

	key := ref.Key()

	if entry, ok := c.cache.Get(ctx, key); ok {
		logger.Info("cache hit")
		c.deliverCached(ctx, chatID, ref, entry.ArtifactHandle, entry.Caption, logger)
		return
	}

	if err := c.available(); err != nil {
		logger.Warn("downloader unavailable", "error", err)
		if !*unavailableSent {
			*unavailableSent = true
			c.notify(ctx, chatID, UnavailableNotice, logger)
		}
		return
	}

	if !c.cfg.SingleFlight {
		if _, err := c.safeFetch(ctx, chatID, ref, logger); err != nil {
			c.reportFailure(ctx, chatID, ref, err, logger)
		}
		return
	}

	leader := false
	v, err, _ := c.inflight.Do(key.String(), func() (any, error) {
		leader = true
		return c.safeFetch(ctx, chatID, ref, logger)
	})
	if err != nil {
		c.reportFailure(ctx, chatID, ref, err, logger)
		return
	}
	if !leader {
		res := v.(*fetchResult)
		logger.Info("joined in-flight fetch")
		c.deliverCached(ctx, chatID, ref, res.handle, res.caption, logger)
	}
}

// available checks that a download can be attempted: the downloader is
// installed and the scratch directory has enough free space.
func (c *FetchCoordinator) available() error {
	if !c.downloader.Available() {
		return domain.ErrDownloaderUnavailable
	}
	if c.cfg.MinFreeBytes <= 0 {
		return nil
	}
	if err := os.MkdirAll(c.cfg.TempPath, 0755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloaderUnavailable, err)
	}
	free, err := c.diskSpace(c.cfg.TempPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloaderUnavailable, err)
	}
	if free < c.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free in %s", domain.ErrDownloaderUnavailable, free, c.cfg.TempPath)
	}
	return nil
}

// safeFetch runs fetch and turns a panic into an error, so callers sharing
// the fetch through the in-flight registry receive an error instead of a
// re-raised panic.
func (c *FetchCoordinator) safeFetch(ctx context.Context, chatID int64, ref domain.VideoReference, logger *slog.Logger) (res *fetchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, panicError(r, logger)
		}
	}()
	return c.fetch(ctx, chatID, ref, logger)
}

// fetch runs download, optional compression, caption and upload for one
// link. Every temporary file is removed before it returns.
func (c *FetchCoordinator) fetch(ctx context.Context, chatID int64, ref domain.VideoReference, logger *slog.Logger) (*fetchResult, error) {
	key := ref.Key()
	start := time.Now()

	var temps []string
	defer func() {
		c.removeTemps(temps, logger)
	}()

	stem := filepath.Join(c.cfg.TempPath, key.FileStem()+"-"+uuid.New().String()[:8])
	path, err := c.downloader.Download(ctx, ref.SourceURL, stem)
	if err != nil {
		return nil, domain.NewLinkError(key, "download", err)
	}
	temps = append(temps, path)

	stat, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewLinkError(key, "download", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err))
	}
	logger.Info("downloaded", "bytes", stat.Size())

	if stat.Size() > c.cfg.MaxUploadBytes {
		compressed, err := c.transcoder.Compress(ctx, path, c.cfg.TargetSizeBytes)
		if err != nil {
			if errors.Is(err, ffmpeg.ErrBitrateTooLow) {
				return nil, domain.NewLinkError(key, "compress", fmt.Errorf("%w: %v", domain.ErrBitrateTooLow, err))
			}
			return nil, domain.NewLinkError(key, "compress", fmt.Errorf("%w: %v", domain.ErrCompressionFailed, err))
		}
		temps = append(temps, compressed)
		path = compressed
		logger.Info("compressed oversized video", "source_bytes", stat.Size())
	}

	var (
		caption  string
		delivery *domain.Delivery
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caption = c.generateCaption(gctx, path, logger)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r, logger)
			}
		}()
		d, err := c.transport.SendVideo(gctx, chatID, domain.VideoSource{FilePath: path}, "")
		if err != nil {
			return domain.NewLinkError(key, "deliver", fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err))
		}
		delivery = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if caption != "" {
		if err := c.transport.EditCaption(ctx, chatID, delivery.MessageID, caption); err != nil {
			logger.Warn("attach caption failed", "error", err)
			caption = ""
		}
	}

	c.cache.Put(ctx, key, delivery.Handle, caption)

	logger.Info("video delivered",
		"captioned", caption != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &fetchResult{handle: delivery.Handle, caption: caption}, nil
}

// generateCaption returns a caption for the video at path, or "" when
// captioning is disabled or fails.
func (c *FetchCoordinator) generateCaption(ctx context.Context, path string, logger *slog.Logger) (caption string) {
	if c.captioner == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("caption skipped", "error", panicError(r, logger))
			caption = ""
		}
	}()

	frame, err := c.transcoder.ExtractFrame(ctx, path)
	if err != nil {
		logger.Warn("caption skipped", "error", fmt.Errorf("%w: %v", domain.ErrFrameExtractionFailed, err))
		return ""
	}
	defer c.removeTemps([]string{frame}, logger)

	caption, err = c.captioner.Caption(ctx, frame)
	if err != nil {
		logger.Warn("caption generation failed", "error", err)
		return ""
	}
	return caption
}

// panicError logs a recovered panic with its stack and converts it to an error.
func panicError(r any, logger *slog.Logger) error {
	logger.Error("recovered panic", "panic", r, "stack", string(debug.Stack()))
	return fmt.Errorf("%w: %v", errLinkPanic, r)
}

func (c *FetchCoordinator) deliverCached(ctx context.Context, chatID int64, ref domain.VideoReference, handle, caption string, logger *slog.Logger) {
	_, err := c.transport.SendVideo(ctx, chatID, domain.VideoSource{Handle: handle}, caption)
	if err != nil {
		c.reportFailure(ctx, chatID, ref, domain.NewLinkError(ref.Key(), "deliver", fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)), logger)
	}
}

func (c *FetchCoordinator) reportFailure(ctx context.Context, chatID int64, ref domain.VideoReference, err error, logger *slog.Logger) {
	logger.Error("link processing failed", "error", err)
	c.notify(ctx, chatID, FailureNotice(ref, err), logger)
}

func (c *FetchCoordinator) notify(ctx context.Context, chatID int64, text string, logger *slog.Logger) {
	if err := c.transport.SendMessage(ctx, chatID, text); err != nil {
		logger.Error("send notice failed", "error", err)
	}
}

func (c *FetchCoordinator) removeTemps(paths []string, logger *slog.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("remove temp file failed", "path", p, "error", err)
		}
	}
}

// FailureNotice builds the chat message reporting that ref could not be
// delivered.
func FailureNotice(ref domain.VideoReference, err error) string {
	var reason string
	switch {
	case errors.Is(err, domain.ErrBitrateTooLow):
		reason = "the video is too long to fit the upload size limit"
	case errors.Is(err, domain.ErrDownloadFailed):
		reason = "the download failed"
	case errors.Is(err, domain.ErrCompressionFailed):
		reason = "the video could not be compressed"
	case errors.Is(err, domain.ErrDeliveryFailed):
		reason = "the upload failed"
	default:
		reason = "something went wrong"
	}
	return fmt.Sprintf("Could not fetch %s: %s.", ref.SourceURL, reason)
}
