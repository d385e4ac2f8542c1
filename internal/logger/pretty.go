package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// prettyEncoder creates the colored console encoder used in development
// mode: short timestamps, colored levels, no caller noise.
func prettyEncoder() zapcore.Encoder {
	config := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     shortTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return zapcore.NewConsoleEncoder(config)
}

func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(fmt.Sprintf("%s[DEBUG]%s", colorCyan, colorReset))
	case zapcore.InfoLevel:
		enc.AppendString(fmt.Sprintf("%s[INFO]%s", colorGreen, colorReset))
	case zapcore.WarnLevel:
		enc.AppendString(fmt.Sprintf("%s[WARN]%s", colorYellow, colorReset))
	case zapcore.ErrorLevel:
		enc.AppendString(fmt.Sprintf("%s[ERROR]%s", colorRed, colorReset))
	case zapcore.FatalLevel:
		enc.AppendString(fmt.Sprintf("%s[FATAL]%s", colorRed+colorBold, colorReset))
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

func shortTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}
