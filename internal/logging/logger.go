// Package logging wraps go.uber.org/zap the way the teacher's
// crypto-wallet/pkg/logger does: a small constructor choosing between
// a JSON and a console encoder, ISO8601 timestamps, and a thin
// *Logger type callers embed rather than importing zap directly
// everywhere.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps *zap.Logger so call sites use one import. level is kept
// alongside the core so SetLevel can adjust verbosity on a config
// hot-reload without rebuilding the logger.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config controls the logger's level and output shape.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	Output *os.File
}

// DefaultConfig returns the simulator's usual defaults: info level,
// console encoding for a terminal-facing CLI tool.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stdout}
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)
	return &Logger{Logger: zap.New(core, zap.AddCaller()), level: level}, nil
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger { return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()} }

// SetLevel adjusts the logger's minimum level in place, for a
// config hot-reload. An unrecognized level is treated as info.
func (l *Logger) SetLevel(s string) error {
	l.level.SetLevel(parseLevel(s))
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
