package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/shelepuginivan/statusbar"
	"github.com/shelepuginivan/statusbar/config"
	"github.com/shelepuginivan/statusbar/features"
	"github.com/shelepuginivan/statusbar/logind"
	"github.com/shelepuginivan/statusbar/notify"
	"github.com/shelepuginivan/statusbar/render"
)

const appName = "statusbar"

func main() {
	defaultPath, err := config.DefaultPath()
	if err != nil {
		defaultPath = "config.yaml"
	}

	configPath := flag.String("config", defaultPath, "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Status bar stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := features.Env{
		Config: cfg,
		Logger: logger,
	}

	systemBus, err := dbus.ConnectSystemBus()
	if err != nil {
		if slices.Contains(cfg.General.Order, config.FeatureBattery) {
			return fmt.Errorf("failed to connect to system bus: %w", err)
		}

		logger.Warn("System bus is not available", "error", err)
	} else {
		defer systemBus.Close()
		env.SystemBus = systemBus
	}

	env.Notifier = newNotifier(logger)

	var renderer statusbar.Renderer = render.NewXSetRoot()
	if cfg.General.Output == config.OutputStdout {
		renderer = render.NewWriter(os.Stdout)
	}

	bar, err := statusbar.New(cfg.General.Order, features.Factory(env), renderer, statusbar.Options{
		Separator: cfg.General.Separator,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if err := bar.Start(ctx); err != nil {
		return err
	}

	if systemBus != nil {
		go watchResume(ctx, systemBus, bar.Sender(), logger)
	}

	go handleSignals(ctx, bar.Sender(), logger)

	logger.Info("Status bar started", "order", cfg.General.Order, "output", cfg.General.Output)

	if err := bar.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Status bar stopped")

	return nil
}

// newNotifier returns a desktop notification client, or a logger if the
// session bus is not available.
func newNotifier(logger *slog.Logger) notify.Notifier {
	sessionBus, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("Session bus is not available, warnings are logged instead", "error", err)
		return notify.Log{Logger: logger}
	}

	return notify.NewClient(sessionBus, appName)
}

// watchResume redraws every feature after the system wakes up, since clocks
// and batteries may have changed while it was asleep.
func watchResume(ctx context.Context, conn *dbus.Conn, sender statusbar.Sender, logger *slog.Logger) {
	watcher := logind.NewWatcher(conn)
	watcher.OnResume(func() error {
		logger.Debug("System resumed")
		return sender.Send(statusbar.UpdateAll)
	})

	if err := watcher.Listen(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("Stopped watching system resume", "error", err)
	}
}

// handleSignals terminates the bar on SIGINT and SIGTERM, and redraws every
// feature on SIGUSR1.
func handleSignals(ctx context.Context, sender statusbar.Sender, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			msg := statusbar.Terminate
			if sig == syscall.SIGUSR1 {
				msg = statusbar.UpdateAll
			}

			logger.Debug("Received signal", "signal", sig.String())

			if err := sender.Send(msg); err != nil {
				return
			}
		}
	}
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Standard output may carry the status line.
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
