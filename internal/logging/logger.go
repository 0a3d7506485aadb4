// Package logging provides structured logging for CLI and TUI modes.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Modes select where log lines go. The TUI owns the terminal's alternate
// screen, so its logs land in a file instead of corrupting the display.
const (
	ModeCLI = "cli"
	ModeTUI = "tui"
)

// Logger wraps zerolog with mode-specific output handling.
type Logger struct {
	zlog   zerolog.Logger
	mode   string
	output io.Writer
}

// NewLogger creates a logger for the given mode writing to out. A nil out
// selects the mode default: CLI logs to stdout (stderr is reserved for
// progress bars), TUI discards until a log file is attached.
func NewLogger(mode string, out io.Writer) *Logger {
	if out == nil {
		if mode == ModeCLI {
			out = os.Stdout
		} else {
			out = io.Discard
		}
	}
	l := &Logger{mode: mode}
	l.SetOutput(out)
	return l
}

// NewDefaultCLILogger creates the standard CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI, nil)
}

// NewFileLogger creates a TUI-mode logger appending to dir/mongohaul.log.
// The returned closer flushes the file when the program exits.
func NewFileLogger(dir string) (*Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "mongohaul.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(ModeTUI, f), f, nil
}

// SetOutput redirects the logger, rebuilding it with console formatting.
// Used to route log lines through a progress bar's writer so they print
// above the bars instead of through them.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    l.mode == ModeTUI,
	}).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer { return l.output }

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// With creates a child logger context.
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
