package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/freedom_case_2/servicedesk/internal/api"
	"github.com/freedom_case_2/servicedesk/internal/config"
	"github.com/freedom_case_2/servicedesk/internal/identity"
	"github.com/freedom_case_2/servicedesk/internal/session"
	"github.com/freedom_case_2/servicedesk/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "servicedesk:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("servicedesk", pflag.ExitOnError)
	fs.String("api-base-url", api.DefaultBaseURL, "REST API base URL")
	fs.String("log-level", "info", "log level")
	fs.String("log-file", "", "log file (the terminal is taken by the interface)")
	fs.String("state-backend", config.StateBackendFile, "identity store: file or redis")
	fs.String("state-path", "", "identity file for the file backend")
	fs.String("redis-addr", "", "redis address for the redis backend")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(changedOnly("servicedesk", fs))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, events, closeStore, err := openIdentity(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	mgr := &session.Manager{Backend: client, Identity: store, Logger: logger}
	model := ui.New(client, mgr, ui.Options{
		PollInterval:   cfg.PollInterval,
		NotifyTTL:      cfg.NotifyTTL,
		RequestTimeout: cfg.RequestTimeout,
		KBLimit:        cfg.KBLimit,
		Identity:       events,
		Logger:         logger,
	})

	logger.Info().Str("api", cfg.APIBaseURL).Str("state_backend", cfg.StateBackend).Msg("client started")
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	logger.Info().Msg("client stopped")
	return nil
}

// changedOnly returns a flag set holding just the flags given on the
// command line, so defaults come from config.Load.
func changedOnly(name string, fs *pflag.FlagSet) *pflag.FlagSet {
	out := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Visit(func(f *pflag.Flag) {
		out.AddFlag(f)
	})
	return out
}

func openLog(cfg config.Config) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(f).Level(level).With().Timestamp().Str("service", "servicedesk").Logger()
	return logger, func() { _ = f.Close() }, nil
}

func openIdentity(ctx context.Context, cfg config.Config, logger zerolog.Logger) (identity.Store, <-chan identity.Event, func(), error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		rs, err := identity.NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, nil, err
		}
		return rs, nil, func() { _ = rs.Close() }, nil
	case config.StateBackendFile, "":
		fstore := &identity.FileStore{Path: cfg.StatePath, Logger: logger}
		if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
			return nil, nil, nil, fmt.Errorf("create state dir: %w", err)
		}
		events, err := fstore.Watch(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("identity watch unavailable")
		}
		return fstore, events, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
}
