package log

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger with a component name and key/value helpers.
type Logger struct {
	base      zerolog.Logger
	zl        zerolog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     zerolog.Level
	Component string
	// Format is "json" or "console".
	Format string
	Output io.Writer
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     zerolog.InfoLevel,
		Component: ComponentApp,
		Format:    "console",
		Output:    os.Stdout,
	}
}

// ParseLevel maps a textual level to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if config.Component == "" {
		config.Component = ComponentApp
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	base := zerolog.New(out).Level(config.Level).With().Timestamp().Logger()
	return newLogger(base, config.Component)
}

func newLogger(base zerolog.Logger, component string) *Logger {
	return &Logger{
		base:      base,
		zl:        base.With().Str(FieldComponent, component).Logger(),
		component: component,
	}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return newLogger(zerolog.Nop(), ComponentApp)
}

// With returns a new logger with the given key/value pairs attached
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.base.With().Fields(args).Logger(), l.component)
}

// WithComponent returns a new logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.base, component)
}

func (l *Logger) emit(ctx context.Context, e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if id := RequestIDFrom(ctx); id != "" {
		e = e.Str(FieldRequestID, id)
	}
	if len(args) > 0 {
		e = e.Fields(args)
	}
	e.Msg(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.emit(context.Background(), l.zl.Info(), msg, args)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Info(), msg, args)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.emit(context.Background(), l.zl.Warn(), msg, args)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Warn(), msg, args)
}

func (l *Logger) Error(msg string, args ...any) {
	l.emit(context.Background(), l.zl.Error(), msg, args)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Error(), msg, args)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.emit(context.Background(), l.zl.Debug(), msg, args)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Debug(), msg, args)
}

// Zerolog exposes the underlying logger for libraries that take one.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// SetDefault sets the global zerolog logger used by packages without injection
func SetDefault(logger *Logger) {
	zlog.Logger = logger.zl
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
