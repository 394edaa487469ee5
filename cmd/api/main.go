package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"tasktracker/configs"
	"tasktracker/internal/config"
	"tasktracker/internal/scheduler"
	"tasktracker/pkg/logger"
)

const appName = "tasktracker"

// Build information, set via ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "Task tracking API with realtime updates",
		Version: Version,
		Before: func(c *cli.Context) error {
			cfg, err := configs.LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("config: %v", err), 2)
			}
			if err := logger.InitLoggers(cfg.LogDir, cfg.LogLevel); err != nil {
				return cli.Exit(fmt.Sprintf("logger: %v", err), 2)
			}
			c.App.Metadata["config"] = cfg
			return nil
		},
		After: func(*cli.Context) error {
			logger.SyncLoggers()
			return nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP and websocket server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create missing tables and seed statuses and priorities",
				Action: migrate,
			},
			{
				Name:   "purge-sessions",
				Usage:  "Delete sessions whose refresh token has expired",
				Action: purgeSessions,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFrom(c *cli.Context) configs.Config {
	return c.App.Metadata["config"].(configs.Config)
}

func serve(c *cli.Context) error {
	cfg := configFrom(c)
	displayAppname(appName)
	logger.SystemLogger.Info("Starting application", zap.String("env", cfg.Env), zap.String("version", Version))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.ErrorLogger.Error("Error closing dependencies", zap.Error(err))
		}
	}()

	if err := deps.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	go func() {
		if err := deps.Hub.Run(ctx); err != nil {
			logger.ErrorLogger.Error("Event relay stopped", zap.Error(err))
		}
	}()

	jobs := scheduler.New()
	if cfg.SessionPurgeInterval > 0 {
		if err := jobs.SchedulePurge(cfg.SessionPurgeInterval, deps.Sessions, deps.Metrics); err != nil {
			return fmt.Errorf("schedule session purge: %w", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	app := deps.App()
	errCh := make(chan error, 1)
	go func() {
		logger.SystemLogger.Info("Application ready", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.SystemLogger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.ErrorLogger.Error("Error shutting down server", zap.Error(err))
	}
	return nil
}

func migrate(c *cli.Context) error {
	deps, err := config.Connect(c.Context, configFrom(c))
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Migrate(c.Context); err != nil {
		return err
	}
	logger.SystemLogger.Info("Schema up to date")
	return nil
}

func purgeSessions(c *cli.Context) error {
	deps, err := config.Connect(c.Context, configFrom(c))
	if err != nil {
		return err
	}
	defer deps.Close()

	n, err := scheduler.PurgeSessions(c.Context, deps.Sessions, deps.Metrics)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d expired sessions\n", n)
	return nil
}

func displayAppname(name string) {
	banner := figure.NewFigure(name, "cybermedium", true)
	banner.Print()
	fmt.Println()
}
