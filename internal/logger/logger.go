package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.ytsaurus.tech/library/go/core/log"
	corezap "go.ytsaurus.tech/library/go/core/log/zap"
)

// Log is the process wide logger. cmd/chililog replaces it once flags are parsed.
var Log log.Logger = corezap.Must(DefaultLoggerConfig(zapcore.DebugLevel))

// DefaultLoggerConfig is a console config writing to stdout at level.
func DefaultLoggerConfig(level zapcore.Level) zap.Config {
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}
