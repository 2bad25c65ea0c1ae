package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iconidentify/reelbot/internal/domain"
	"github.com/iconidentify/reelbot/internal/links"
	"github.com/iconidentify/reelbot/internal/repository"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge delivered video cache entries",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <provider:videoId | url>",
	Short: "Show the cached file handle for a video",
	Example: `  reelbot cache get youtube:dQw4w9WgXcQ
  reelbot cache get https://www.instagram.com/reel/Cx1abc/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := cacheKeyArg(args[0])
		if err != nil {
			return err
		}

		repo, err := repository.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open artifact cache: %w", err)
		}
		defer repo.Close()

		entry, err := repo.Get(cmd.Context(), key)
		if errors.Is(err, domain.ErrCacheMiss) {
			return fmt.Errorf("%s is not cached", key)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "key:     %s\n", entry.Key)
		fmt.Fprintf(out, "handle:  %s\n", entry.ArtifactHandle)
		fmt.Fprintf(out, "caption: %s\n", entry.Caption)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge <provider:videoId | url>",
	Short: "Remove a video from the cache so the next request fetches it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := cacheKeyArg(args[0])
		if err != nil {
			return err
		}

		repo, err := repository.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open artifact cache: %w", err)
		}
		defer repo.Close()

		if err := repo.Delete(cmd.Context(), key); err != nil {
			return fmt.Errorf("purge %s: %w", key, err)
		}
		logger.Info("cache entry purged", "cache_key", key)
		fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", key)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheGetCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheKeyArg accepts either a cache key or a supported video URL.
func cacheKeyArg(arg string) (domain.CacheKey, error) {
	if ref, ok := links.Parse(arg); ok {
		return ref.Key(), nil
	}
	return domain.ParseCacheKey(arg)
}
