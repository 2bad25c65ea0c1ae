package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/iconidentify/reelbot/internal/downloader"
	"github.com/iconidentify/reelbot/internal/repository"
	"github.com/iconidentify/reelbot/internal/service"
	"github.com/iconidentify/reelbot/internal/telegram"
	"github.com/iconidentify/reelbot/internal/worker"
	"github.com/iconidentify/reelbot/pkg/captioner"
	"github.com/iconidentify/reelbot/pkg/ffmpeg"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot that replies to video links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateBot(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBot(ctx)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(ctx context.Context) error {
	logger.Info("starting reelbot bot", "version", Version, "build_time", BuildTime)

	repo, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open artifact cache: %w", err)
	}
	defer repo.Close()

	dl := downloader.NewYtDlpDownloader(cfg.Download, logger)
	if !dl.Available() {
		logger.Warn("yt-dlp not found, only cached videos can be delivered", "path", cfg.Download.BinaryPath)
	}

	processor := ffmpeg.NewProcessor(nil, ffmpeg.Config{
		FFmpegPath:      cfg.Transcode.FFmpegPath,
		FFprobePath:     cfg.Transcode.FFprobePath,
		AudioKbps:       cfg.Transcode.AudioKbps,
		MinVideoKbps:    cfg.Transcode.MinVideoKbps,
		CompressTimeout: cfg.Transcode.CompressTimeout,
		FrameTimeout:    cfg.Transcode.FrameTimeout,
		FrameMaxSize:    cfg.Transcode.FrameMaxSize,
	})
	if !processor.Available() {
		logger.Warn("ffmpeg not found, oversized videos will fail to compress")
	}

	var capt service.Captioner
	if cfg.Caption.CaptionEnabled() {
		capt = captioner.NewClient(cfg.Caption)
		logger.Info("captioning enabled", "model", cfg.Caption.Model)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Bot.Debug
	logger.Info("authorized on telegram", "username", api.Self.UserName)

	transport := telegram.NewTransport(api)
	coordinator := service.NewFetchCoordinator(
		service.NewArtifactCache(repo, logger),
		dl,
		processor,
		capt,
		transport,
		service.NewCoordinatorConfig(cfg),
		logger,
	)

	pool := worker.NewPool(worker.Config{
		Workers:   cfg.Bot.Workers,
		QueueSize: cfg.Bot.QueueSize,
	}, coordinator, logger)
	pool.Start()

	bot := telegram.NewBot(api, pool, transport, cfg.Bot.UpdateTimeout, logger)
	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped with error", "error", err)
	}

	logger.Info("shutting down")

	// In-flight links get a grace period before their context is cancelled.
	if err := pool.Stop(25 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
