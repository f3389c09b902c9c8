package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRepository creates a component-scoped logger carrying both a
// repository identifier and the driver that resolved it. The two
// travel together: an identifier alone doesn't say whether a log line
// came from the github or local driver, and that's usually the first
// thing worth knowing when a fetch fails.
func WithRepository(component, identifier, driverName string) zerolog.Logger {
	ctx := WithComponent(component).With().Str("repository", identifier)
	if driverName != "" {
		ctx = ctx.Str("driver", driverName)
	}
	return ctx.Logger()
}

// WithPackage creates a component-scoped logger carrying a package
// name alongside its owning repository, since a bare package name is
// ambiguous once more than one repository publishes one by that name.
func WithPackage(component, name, repository string) zerolog.Logger {
	return WithComponent(component).With().
		Str("package", name).
		Str("repository", repository).
		Logger()
}

// WithTransaction creates a component-scoped logger carrying a
// transaction id and which pass is running. Every transaction.Handlers
// callback has both facts on hand, and a rollback-pass log line reads
// very differently from an apply-pass one at the same call site.
func WithTransaction(component, id string, rollback bool) zerolog.Logger {
	phase := "apply"
	if rollback {
		phase = "rollback"
	}
	return WithComponent(component).With().
		Str("transaction_id", id).
		Str("phase", phase).
		Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
