// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/bonial-oss/nvd-mirror/internal/config"
	"github.com/bonial-oss/nvd-mirror/internal/datasource/nvd"
	"github.com/bonial-oss/nvd-mirror/internal/logging"
	"github.com/bonial-oss/nvd-mirror/internal/state"
	"github.com/bonial-oss/nvd-mirror/internal/store"
	"github.com/bonial-oss/nvd-mirror/internal/syncer"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes.
const (
	ExitNotFound      = 1
	ExitFatal         = 2
	ExitInvalidConfig = 3
)

// ExitError signals a non-zero exit code with an optional message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// Options holds the global flag values.
type Options struct {
	ConfigFile    string
	EnvFile       string
	Dir           string
	APIKey        string
	APIURL        string
	Throttle      time.Duration
	PageSize      int
	MaxWindowDays int
	ChunkSize     int64
	Debug         bool
}

// NewRootCommand creates the root cobra command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:     "nvd-mirror",
		Short:   "Keep a local mirror of the NVD CVE database and query it offline",
		Version: Version,
		Long: `nvd-mirror downloads the NVD CVE database through the NVD API 2.0, stores
a compact record per CVE in size-bounded JSON chunk files, and keeps it up to
date with incremental refreshes once the local copy is older than 24 hours.

Usage:
  nvd-mirror sync
  nvd-mirror lookup CVE-2021-44228
  nvd-mirror status`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "Load environment variables from this file if it exists")
	flags.StringVar(&opts.Dir, "dir", "", "Mirror directory (default $XDG_DATA_HOME/nvd-mirror or ~/.nvd-mirror)")
	flags.StringVar(&opts.APIKey, "api-key", "", "NVD API key (or "+config.EnvAPIKey+")")
	flags.StringVar(&opts.APIURL, "api-url", config.DefaultAPIURL, "NVD CVE API endpoint")
	flags.DurationVar(&opts.Throttle, "throttle", 0, "Minimum pause between requests, 0 disables (default 6s, 1s with an API key)")
	flags.IntVar(&opts.PageSize, "page-size", config.MaxPageSize, "Results per page (1-2000)")
	flags.IntVar(&opts.MaxWindowDays, "max-window-days", config.MaxWindowDays, "Widest date window per query in days (1-120)")
	flags.Int64Var(&opts.ChunkSize, "chunk-size", config.DefaultChunkSize, "Maximum chunk file size in bytes")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCommand(opts),
		newLookupCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

// loadConfig merges defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func loadConfig(flags *pflag.FlagSet, opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		if err := cfg.LoadFile(opts.ConfigFile); err != nil {
			return nil, configError(err)
		}
	}
	if err := cfg.LoadEnv(opts.EnvFile); err != nil {
		return nil, configError(err)
	}
	applyFlags(flags, opts, &cfg)

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	return &cfg, nil
}

func applyFlags(flags *pflag.FlagSet, opts *Options, cfg *config.Config) {
	if flags.Changed("dir") {
		cfg.Dir = opts.Dir
	}
	if flags.Changed("api-key") {
		cfg.APIKey = opts.APIKey
	}
	if flags.Changed("api-url") {
		cfg.APIURL = opts.APIURL
	}
	if flags.Changed("throttle") {
		throttle := opts.Throttle
		cfg.Throttle = &throttle
	}
	if flags.Changed("page-size") {
		cfg.PageSize = opts.PageSize
	}
	if flags.Changed("max-window-days") {
		cfg.MaxWindowDays = opts.MaxWindowDays
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSizeBytes = opts.ChunkSize
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.Debug
	}
}

func configError(err error) error {
	return &ExitError{Code: ExitInvalidConfig, Message: err.Error()}
}

// app wires the mirror components for one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	state  *state.State
}

func newApp(cmd *cobra.Command, opts *Options) (*app, error) {
	cfg, err := loadConfig(cmd.Flags(), opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store.New(cfg.Dir, cfg.ChunkSizeBytes, logger),
		state:  state.New(cfg.Dir),
	}, nil
}

func (a *app) syncer() *syncer.Syncer {
	if a.cfg.APIKey == "" {
		a.logger.Warn("no NVD API key configured, requests are unauthenticated",
			zap.Duration("throttle", a.cfg.RequestThrottle()))
	}
	client := nvd.NewClient(nvd.Options{
		BaseURL:   a.cfg.APIURL,
		APIKey:    a.cfg.APIKey,
		PageSize:  a.cfg.PageSize,
		Throttle:  a.cfg.RequestThrottle(),
		MaxWindow: a.cfg.MaxWindow(),
		Retry: nvd.RetryPolicy{
			InitialInterval: a.cfg.Retry.InitialInterval,
			MaxInterval:     a.cfg.Retry.MaxInterval,
			MaxAttempts:     a.cfg.Retry.MaxAttempts,
		},
		HTTPClient: &http.Client{Timeout: a.cfg.HTTPTimeout},
		Logger:     a.logger,
	})
	return syncer.New(client, a.store, a.state, a.logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// isInterrupted reports whether err stems from a cancelled context.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// lazySyncer builds the NVD client only when a sync is actually needed.
type lazySyncer struct{ a *app }

func (l lazySyncer) Run(ctx context.Context, reinit bool) (*syncer.Result, error) {
	return l.a.syncer().Run(ctx, reinit)
}
