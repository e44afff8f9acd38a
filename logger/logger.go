// Package logger provides the structured logging interface used across the
// relay, backed by zerolog. Output goes to stdout as JSON or as a human
// readable console stream, optionally mirrored into daily-rotated files.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logger every relay component receives.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	Error(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry. The receiver is
	// left unchanged.
	//
	// Parameters:
	//   - fields: Key-value pairs to attach to the derived logger
	//
	// Returns:
	//   - A derived Logger
	With(fields ...Field) Logger

	// Close releases files held by the logger. It is safe to call multiple
	// times; derived loggers never close the shared file.
	//
	// Returns:
	//   - An error if closing the log file fails
	Close() error
}

// Options selects where and how a Logger built by New writes.
type Options struct {
	// Service is added as the "service" field and names the log files.
	Service string
	// Level is a level name understood by ParseLevel.
	Level string
	// Console switches stdout from JSON to zerolog's console format.
	Console bool
	// Dir, when set, mirrors every entry into {Service}_{date}.log under Dir.
	Dir string
	// Stdout overrides os.Stdout; mainly for tests.
	Stdout io.Writer
}

type zerologLogger struct {
	logger         zerolog.Logger
	fileWriter     *DailyFileWriter
	ownsFileWriter bool
}

// New builds a Logger from opts.
//
// Parameters:
//   - opts: Output selection and level
//
// Returns:
//   - The Logger, or an error if the log directory or file cannot be opened
func New(opts Options) (Logger, error) {
	var out io.Writer = os.Stdout
	if opts.Stdout != nil {
		out = opts.Stdout
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var fileWriter *DailyFileWriter
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		fw, err := NewDailyFileWriter(opts.Service, opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("create file writer: %w", err)
		}
		fileWriter = fw
		out = io.MultiWriter(out, fw)
	}

	l := zerolog.New(out).With().Str("service", opts.Service).Timestamp().Logger().Level(ParseLevel(opts.Level))
	return &zerologLogger{logger: l, fileWriter: fileWriter, ownsFileWriter: fileWriter != nil}, nil
}

// NewZerologLogger wraps an existing zerolog.Logger, adding the service name
// and a timestamp to every entry.
//
// Parameters:
//   - l: The zerolog.Logger to wrap
//   - serviceName: Value of the "service" field
//   - level: Minimum level to log
//
// Returns:
//   - A Logger writing through l
func NewZerologLogger(l zerolog.Logger, serviceName string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: l.With().Str("service", serviceName).Timestamp().Logger().Level(level),
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

// OrNop returns l, or a no-op Logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}

	return l
}

// ParseLevel maps a level name onto a zerolog level. Unknown or empty names
// yield info.
//
// Parameters:
//   - level: One of debug, info, warn/warning, error (case-insensitive)
//
// Returns:
//   - The matching zerolog.Level
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug implements Logger.
func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

// Info implements Logger.
func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

// Warn implements Logger.
func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

// Error implements Logger.
func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

// With implements Logger.
func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger:     z.logger.With().Fields(toMap(fields)).Logger(),
		fileWriter: z.fileWriter,
	}
}

// Close implements Logger.
func (z *zerologLogger) Close() error {
	if z.fileWriter != nil && z.ownsFileWriter {
		return z.fileWriter.Close()
	}

	return nil
}

func toMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	return m
}
