package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/daemon"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Override daemon.http.addr"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, false)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Daemon.HTTP.Addr = s.Addr
	}

	level := logLevel(root.Verbose)
	if !root.Verbose && os.Getenv(LogLevelEnv) == "" {
		level = cfg.Logging.Level.SlogLevel()
	}
	logger := newLogger(level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, root.Config, daemon.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("Daemon starting, waiting for shutdown signal", slog.String("config", root.Config))
	return d.Run(ctx)
}
