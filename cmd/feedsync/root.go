// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads config, sets up logging, and opens the store, source, syncer, and controller

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/source"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
)

var (
	configPath string
	debug      bool
	cfg        *config.Config
	logger     = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "Local feed cache with single-flight refresh",
	Long: `
███████╗███████╗███████╗██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔════╝██╔════╝██╔════╝██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
█████╗  █████╗  █████╗  ██║  ██║███████╗ ╚████╔╝ ██╔██╗ ██║██║
██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║     ███████╗███████╗██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚═╝     ╚══════╝╚══════╝╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝

Mirror one remote feed into a local cache for humans and AI agents.

Refresh, browse offline, stream state over HTTP, and expose via MCP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(config.ExpandPath(configPath))
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/feedsync/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// app holds the wired cache for one command invocation.
type app struct {
	store  storage.LocalStore
	src    source.Source
	syncer *syncer.Syncer
}

// openApp opens the configured store and source and wires a syncer over them.
func openApp(c *config.Config) (*app, error) {
	timeout, err := c.GetRefreshTimeout()
	if err != nil {
		return nil, err
	}

	src, err := c.OpenSource()
	if err != nil {
		return nil, err
	}

	store, err := c.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.GetBackend(), err)
	}

	s := syncer.New(store, src,
		syncer.WithTimeout(timeout),
		syncer.WithLogger(logger),
	)

	return &app{store: store, src: src, syncer: s}, nil
}

// startController creates and starts a controller bound to ctx.
func (a *app) startController(ctx context.Context) (*feedstate.Controller, error) {
	ctrl := feedstate.New(a.syncer, feedstate.WithLogger(logger))
	if err := ctrl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start controller: %w", err)
	}
	return ctrl, nil
}

func (a *app) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// signalContext returns a context canceled on interrupt or termination.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
