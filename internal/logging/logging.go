// Package logging implements the four-level structured logger spec.md
// §6 names (DEBUG/INFO/WARNING/ERROR), via zerolog. Sink is stdout or an
// append-only file, matching SPEC_FULL.md §6.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level names accepted in config/flags, case-insensitively.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Options configures the process-wide logger.
type Options struct {
	Level string // debug, info, warning, error
	Path  string // empty means stdout
	JSON  bool   // false uses zerolog's ConsoleWriter for local development
}

// New builds a zerolog.Logger per Options. Returns the logger and an
// io.Closer for the underlying file sink, if any (nil for stdout).
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer
	if opts.Path == "" {
		out = os.Stdout
	} else {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("logging: open %s: %w", opts.Path, err)
		}
		out = f
		closer = f
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "", Debug:
		return zerolog.DebugLevel, nil
	case Info:
		return zerolog.InfoLevel, nil
	case Warning, "warn":
		return zerolog.WarnLevel, nil
	case Error:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// SetLevel replaces *l with a copy of l at the new minimum level, the
// subset of config hot-reload SPEC_FULL.md §9 Open Question 4 allows. It
// is a plain assignment: it does not change zerolog's global level or any
// other copy of the logger.
func SetLevel(l *zerolog.Logger, levelName string) error {
	level, err := parseLevel(levelName)
	if err != nil {
		return err
	}
	*l = l.Level(level)
	return nil
}
