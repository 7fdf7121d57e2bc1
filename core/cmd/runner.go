package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/studiobot/core/config"
	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/server"
)

// App is the minimal interface required to serve the webhook.
type App interface {
	ServerOptions() server.Options
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and serve it.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (App, error)

	ShutdownLogger func() error
	Serve          func(ctx context.Context, opts server.Options) error
}

// Run loads configuration, bootstraps the app, and serves until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	srvOpts := application.ServerOptions()
	prevStart := srvOpts.OnStart
	srvOpts.OnStart = func(ctx context.Context, addr string) error {
		if prevStart != nil {
			if err := prevStart(ctx, addr); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("status", "ok"),
			slog.String("addr", addr),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	prevStop := srvOpts.OnStop
	srvOpts.OnStop = func(ctx context.Context) error {
		logger.Info(ctx, "app", "shutdown", slog.String("status", "ok"))
		var stopErr error
		if prevStop != nil {
			stopErr = prevStop(ctx)
		}
		if err := application.Close(); err != nil {
			logger.Warn(ctx, "app", "shutdown", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
		return stopErr
	}

	serve := opts.Serve
	if serve == nil {
		serve = server.Run
	}
	return serve(ctx, srvOpts)
}
