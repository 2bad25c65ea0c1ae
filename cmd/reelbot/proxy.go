package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iconidentify/reelbot/internal/api"
	"github.com/iconidentify/reelbot/internal/api/handler"
	"github.com/iconidentify/reelbot/internal/metadata"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve Open Graph preview pages for Instagram posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runProxy(ctx)
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(ctx context.Context) error {
	logger.Info("starting reelbot proxy", "version", Version, "build_time", BuildTime)

	resolver := metadata.NewResolver(cfg.Metadata, &http.Client{Timeout: cfg.Metadata.FetchTimeout}, logger)

	router := api.NewRouter(
		handler.NewPreviewHandler(resolver, cfg.Server.BaseURL, logger),
		handler.NewHealthHandler(resolver),
		handler.NewUIHandler(),
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
