package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mobility-bench/mobench/internal/config"
	"github.com/mobility-bench/mobench/internal/replay"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the tool-response replay cache",
		Long: `Manage the replay cache of recorded tool responses.

Entries are keyed by a fingerprint of tool name and canonicalized
arguments and are shared across runs. Sandbox-mode runs are served
exclusively from this cache.`,
	}

	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Replay cache directory")

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of recorded entries",
		Args:  cobra.NoArgs,
		RunE:  cacheStatsE,
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded entries",
		Long: `Remove every recorded tool response.

Sandbox runs against a cleared cache fail every tool call; re-record in
live mode before running again.`,
		Args: cobra.NoArgs,
		RunE: cacheClearE,
	}
}

func resolveCacheDir() (string, error) {
	dir := cacheDir
	if dir == "" {
		cfg, err := config.Load(".")
		if err != nil {
			return "", err
		}
		dir = cfg.Paths.Cache
	}
	return filepath.Abs(dir)
}

func cacheStatsE(cmd *cobra.Command, args []string) error {
	dir, err := resolveCacheDir()
	if err != nil {
		return err
	}

	cache, err := replay.Open(dir, replay.ModeSandbox, nil)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "0 entries in %s (not yet recorded)\n", dir)
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries in %s\n", cache.Len(), dir)
	return nil
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	dir, err := resolveCacheDir()
	if err != nil {
		return err
	}

	cache, err := replay.Open(dir, replay.ModeSandbox, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", dir)
	return nil
}
