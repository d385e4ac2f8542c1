// Package logger builds the process-wide zap logger: console output for
// interactive use plus a rotated JSON log file.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	LogFile     string
	MaxSize     int // megabytes
	MaxAge      int // days
	MaxBackups  int
	Compress    bool
	Development bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "tracker.log",
		MaxSize:     50,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}

// New creates a logger writing to stdout and a rotated log file.
func New(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	level := zapcore.InfoLevel
	if cfg.Development {
		consoleEncoder = prettyEncoder()
		level = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level),
	)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// Sync flushes the logger, ignoring the spurious errors stdout returns
// on some platforms.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	if err != nil && (err.Error() == "sync /dev/stdout: invalid argument" ||
		err.Error() == "sync /dev/stderr: inappropriate ioctl for device") {
		return nil
	}
	return err
}
