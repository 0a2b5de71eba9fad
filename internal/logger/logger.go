// Package logger provides structured logging for versealign
package logger

import (
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with versealign-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "versealign").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything; handy in tests
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// GrpcLogger returns a logger for gRPC operations
func (l *Logger) GrpcLogger(method string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "grpc").
			Str("method", method).
			Logger(),
	}
}

// CorpusLogger returns a logger scoped to one corpus
func (l *Logger) CorpusLogger(corpusID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "corpus").
			Str("corpus", corpusID).
			Logger(),
	}
}

// ManifestLogger returns a logger for manifest parsing
func (l *Logger) ManifestLogger(source string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "manifest").
			Str("source", source).
			Logger(),
	}
}

// LogGrpcRequest logs a gRPC request with structured fields
func (l *Logger) LogGrpcRequest(method, requestID string, duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}

	event.
		Str("component", "grpc").
		Str("method", method).
		Str("request_id", requestID).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogShardFetch logs one shard fetch
func (l *Logger) LogShardFetch(shard string, size int, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}

	event.
		Str("shard", shard).
		Str("size", humanize.Bytes(uint64(size))).
		Dur("duration_ms", duration).
		Msg("Shard fetch completed")
}

// LogCorpusLoad logs a completed (or failed) corpus load
func (l *Logger) LogCorpusLoad(shards, lines, bytes int, duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}

	event.
		Int("shards", shards).
		Int("lines", lines).
		Str("size", humanize.Bytes(uint64(bytes))).
		Dur("duration_ms", duration).
		Msg("Corpus load completed")
}

// LogRecordSkipped logs a corpus line left out of a result
func (l *Logger) LogRecordSkipped(lineIndex int, snippet string, err error) {
	l.zlog.Warn().
		Int("line", lineIndex).
		Str("snippet", snippet).
		Err(err).
		Msg("Skipping corpus line")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, corpora int) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Int("corpora", corpora).
		Msg("versealign server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("versealign server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("versealign server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}

// OrGlobal returns l, or the global logger when l is nil
func OrGlobal(l *Logger) *Logger {
	if l == nil {
		return GetGlobalLogger()
	}
	return l
}
