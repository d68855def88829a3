package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter prints classified errors and picks the process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr, exit: os.Exit}
}

// ExitCodeFor returns 0 for nil, the category's code for classified errors
// and 1 for anything else.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ce, ok := AsClassified(err); ok {
		return traitsOf(ce.category).exitCode
	}
	return unclassified.exitCode
}

// FormatError renders err for the terminal. Without -v only the message is shown.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return ce.Error()
	case ce.category == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	}
	return "Error: " + ce.message
}

// HandleError logs err, prints it and exits. A nil err is a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if ce, ok := AsClassified(err); ok {
		if a.verbose || ce.IsFatal() {
			level := slog.LevelError
			if ce.severity == SeverityWarning {
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{slog.String("category", string(ce.category))}
			for k, v := range ce.context {
				attrs = append(attrs, slog.Any(k, v))
			}
			a.logger.LogAttrs(context.Background(), level, ce.message, attrs...)
		}
	} else {
		a.logger.Error("Unclassified error", "error", err)
	}
	fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}
