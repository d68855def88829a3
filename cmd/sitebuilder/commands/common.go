// Package commands implements the sitebuilder command line.
package commands

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// LogLevelEnv overrides the default log level when -v is not given.
const LogLevelEnv = "SITEBUILDER_LOG_LEVEL"

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml" env:"SITEBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Build one site and print the build result as JSON"`
	Verify VerifyCmd `cmd:"" help:"Inspect a build output directory"`
	Sites  SitesCmd  `cmd:"" help:"List configured sites"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Serve  ServeCmd  `cmd:"" help:"Run the build daemon (HTTP API, scheduler, notifications)"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(logLevel(c.Verbose), config.LogFormatText))
	return nil
}

// logLevel resolves -v first, then SITEBUILDER_LOG_LEVEL, then info.
func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return config.NormalizeLogLevel(os.Getenv(LogLevelEnv)).SlogLevel()
}

func newLogger(level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadConfig reads the configuration file. With allowMissing a missing file
// yields the built-in defaults.
func loadConfig(path string, allowMissing bool) (*config.Config, error) {
	if allowMissing {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Debug("No configuration file, using defaults", slog.String("path", path))
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
