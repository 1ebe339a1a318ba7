package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format represents the output format for logs
type Format string

const (
	// JSONFormat outputs logs as JSON
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable format
	HumanFormat Format = "human"
)

// Config holds logger configuration
type Config struct {
	Format Format
	Level  zapcore.Level
	Output io.Writer // Optional, defaults to stderr
}

// NewLogger creates a new logger with the given configuration.
// stdout is reserved for the protocol stream, so the default output is stderr.
func NewLogger(config Config) *zap.Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	var enc zapcore.Encoder
	if config.Format == JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(writer)), zap.NewAtomicLevelAt(config.Level))
	return zap.New(core)
}

// NewFileLogger creates a logger that appends to path. The returned closer
// must be closed by the caller when the logger is no longer needed.
func NewFileLogger(path string, config Config) (*zap.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	config.Output = f
	return NewLogger(config), f, nil
}

// NewDiscardLogger creates a logger that discards all output.
// Useful for tests or when logging should be completely suppressed.
func NewDiscardLogger() *zap.Logger {
	return zap.NewNop()
}

// LevelFromString converts a string to a level.
// Supports: debug, info, warn, error (case-insensitive).
// Returns info for unrecognized strings.
func LevelFromString(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// FormatFromString converts a string to a Format, defaulting to human.
func FormatFromString(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(JSONFormat)) {
		return JSONFormat
	}
	return HumanFormat
}

// LevelFromVerbosity converts CLI verbosity flags to a level.
// - quiet=true: only errors
// - verbosity=0: warn (default for CLI)
// - verbosity=1: info
// - verbosity>=2: debug
func LevelFromVerbosity(verbosity int, quiet bool) zapcore.Level {
	if quiet {
		return zapcore.ErrorLevel
	}
	switch verbosity {
	case 0:
		return zapcore.WarnLevel
	case 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
