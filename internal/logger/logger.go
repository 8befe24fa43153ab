package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger defines the schemactl logging contract.
// Implementations should support standard log levels and be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)

	// With returns a child logger that adds key=value to every message.
	With(key string, value any) Logger
}

// Config selects the level, format and destination of a logger.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is json, console, or auto (console on a terminal, json otherwise).
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
}

// New creates a ZeroLogger from cfg.
func New(cfg Config) *ZeroLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if useConsole(cfg.Format, out) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	level := ParseLevel(cfg.Level)
	return &ZeroLogger{
		logger: zerolog.New(out).Level(level).With().Timestamp().Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *ZeroLogger {
	return &ZeroLogger{logger: zerolog.Nop()}
}

func (l *ZeroLogger) With(key string, value any) Logger {
	return &ZeroLogger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *ZeroLogger) Info(msg string, args ...any) {
	l.logger.Info().Msgf(msg, args...)
}

func (l *ZeroLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Msgf(msg, args...)
}

func (l *ZeroLogger) Error(msg string, args ...any) {
	l.logger.Error().Msgf(msg, args...)
}

func (l *ZeroLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Msgf(msg, args...)
}

// ParseLevel maps a level name to a zerolog level, falling back to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "console", "pretty":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Default provides a global default logger writing to stderr, used by
// library callers that do not pass their own.
var Default Logger = New(Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
