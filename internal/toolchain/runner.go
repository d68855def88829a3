// Package toolchain runs the static-site generator's install and build
// commands inside a template directory.
package toolchain

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

var (
	// ErrToolchainFailed marks a command that exited non-zero or could not start.
	ErrToolchainFailed = stdErrors.New("toolchain command failed")
	// ErrTimeout marks a command killed after exceeding toolchain.timeout.
	ErrTimeout = stdErrors.New("toolchain command timed out")
)

// Step names used in logs, errors and metrics.
const (
	StepInstall = "install"
	StepBuild   = "build"
)

// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
const waitDelay = 5 * time.Second

// Runner abstracts the rendering step so the coordinator can swap the real
// toolchain for a no-op in tests.
type Runner interface {
	Run(ctx context.Context, dir string) error
}

// CommandRunner executes the configured argv arrays with cmd.Dir set to the
// template directory. The process working directory is never changed.
type CommandRunner struct {
	cfg      config.ToolchainConfig
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a CommandRunner.
type Option func(*CommandRunner)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *CommandRunner) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger used for command output.
func WithLogger(l *slog.Logger) Option {
	return func(c *CommandRunner) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCommandRunner returns a runner for cfg.
func NewCommandRunner(cfg config.ToolchainConfig, opts ...Option) *CommandRunner {
	r := &CommandRunner{cfg: cfg, recorder: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Installed reports whether the install marker exists under dir.
func (r *CommandRunner) Installed(dir string) bool {
	if r.cfg.InstallMarker == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, r.cfg.InstallMarker))
	return err == nil
}

// Run installs dependencies when the marker is absent, then runs the build.
func (r *CommandRunner) Run(ctx context.Context, dir string) error {
	if len(r.cfg.InstallCommand) > 0 {
		if r.Installed(dir) {
			r.logger.Debug("Dependencies present, skipping install",
				logfields.Path(filepath.Join(dir, r.cfg.InstallMarker)))
		} else if err := r.runStep(ctx, StepInstall, dir, r.cfg.InstallCommand); err != nil {
			return err
		}
	}
	return r.runStep(ctx, StepBuild, dir, r.cfg.BuildCommand)
}

func (r *CommandRunner) runStep(ctx context.Context, step, dir string, argv []string) error {
	if len(argv) == 0 {
		return errors.ToolchainError(fmt.Sprintf("%s command is empty", step)).Fatal().Build()
	}
	command := strings.Join(argv, " ")

	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.TimeoutDuration())
	defer cancel()

	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...) // #nosec G204 -- argv comes from operator config
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.WaitDelay = waitDelay

	stdout := newLineLogger(r.logger, step, "stdout")
	stderr := newLineLogger(r.logger, step, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Info("Running toolchain command", logfields.Stage(step), logfields.Command(command), logfields.Path(dir))
	start := time.Now()
	err := cmd.Run()
	stdout.flush()
	stderr.flush()
	dur := time.Since(start)
	r.recorder.ObserveToolchainCommand(step, dur, err == nil)

	if err == nil {
		r.logger.Info("Toolchain command finished", logfields.Stage(step),
			logfields.DurationMS(float64(dur.Milliseconds())))
		return nil
	}

	// Parent cancellation is reported as-is so callers can classify it.
	if ctx.Err() != nil {
		return fmt.Errorf("%s command interrupted: %w", step, ctx.Err())
	}

	output := combineOutput(stdout.String(), stderr.String())
	var cause error
	switch {
	case stdErrors.Is(stepCtx.Err(), context.DeadlineExceeded):
		cause = fmt.Errorf("%w after %s: %s", ErrTimeout, r.cfg.TimeoutDuration(), command)
	case output != "":
		cause = fmt.Errorf("%w: %w: %s", ErrToolchainFailed, err, output)
	default:
		cause = fmt.Errorf("%w: %w", ErrToolchainFailed, err)
	}

	b := errors.WrapError(cause, errors.CategoryToolchain, fmt.Sprintf("%s command failed", step)).
		Fatal().
		WithContext("command", command).
		WithContext("dir", dir)
	var exitErr *exec.ExitError
	if stdErrors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode())
	}
	return b.Build()
}

// combineOutput keeps both streams since generators print errors to either.
func combineOutput(out, errOut string) string {
	out = strings.TrimSpace(out)
	errOut = strings.TrimSpace(errOut)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

const (
	// outputTail bounds how much of each stream is kept for error messages.
	outputTail = 64 << 10
	// maxLogLine splits lines that never end so the pending buffer stays small.
	maxLogLine = 8 << 10
)

// lineLogger keeps the last outputTail bytes written to it and emits each
// complete line to the debug log.
type lineLogger struct {
	logger    *slog.Logger
	step      string
	stream    string
	tail      []byte
	truncated bool
	partial   []byte
}

func newLineLogger(logger *slog.Logger, step, stream string) *lineLogger {
	return &lineLogger{logger: logger, step: step, stream: stream}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.keep(p)
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		l.emit(l.partial[:i])
		l.partial = l.partial[i+1:]
	}
	if len(l.partial) >= maxLogLine {
		l.flush()
	}
	return len(p), nil
}

func (l *lineLogger) keep(p []byte) {
	if len(p) >= outputTail {
		l.tail = append(l.tail[:0], p[len(p)-outputTail:]...)
		l.truncated = true
		return
	}
	if over := len(l.tail) + len(p) - outputTail; over > 0 {
		l.tail = append(l.tail[:0], l.tail[over:]...)
		l.truncated = true
	}
	l.tail = append(l.tail, p...)
}

func (l *lineLogger) flush() {
	if len(l.partial) > 0 {
		l.emit(l.partial)
		l.partial = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	l.logger.Debug("toolchain "+l.stream, logfields.Stage(l.step), slog.String("line", string(line)))
}

// String returns the kept output, marked when earlier output was dropped.
func (l *lineLogger) String() string {
	if l.truncated {
		return "[output truncated]\n" + string(l.tail)
	}
	return string(l.tail)
}

// NoopRunner performs no rendering.
type NoopRunner struct{}

// Run implements Runner.
func (NoopRunner) Run(_ context.Context, dir string) error {
	slog.Debug("NoopRunner skipping toolchain", logfields.Path(dir))
	return nil
}
