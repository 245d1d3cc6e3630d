package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/api"
)

var (
	configPath string
	cacheDir   string
	noCache    bool
	noRefresh  bool
	verbose    bool

	// cfg is populated before any subcommand runs.
	cfg *api.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to HCL config (default ~/.agentic-research/dvk/dvk.hcl)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Index cache directory")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Parse every directory instead of using snapshots")
	rootCmd.PersistentFlags().BoolVar(&noRefresh, "no-refresh", false, "Trust snapshots without checking files on disk")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Report load progress on stderr")
}

var rootCmd = &cobra.Command{
	Use:           "dvk",
	Short:         "dvk: catalog downloaded media from .dvk and .dmf records",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cacheDir != "" {
			c.Cache.Dir = cacheDir
		}
		if noCache {
			c.Cache.Disabled = true
		}
		if noRefresh {
			c.Cache.NoRefresh = true
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel a running load.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
