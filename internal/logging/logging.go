// Package logging builds the zap loggers used by the binaries. Log output
// always goes to a rotating file, never to the terminal: the client binary
// owns the terminal for rendering.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a SugaredLogger writing to filePath with size-based rotation.
func New(filePath string) *zap.SugaredLogger {
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(lj),
		zapcore.DebugLevel,
	)
	return zap.New(core, zap.AddCaller()).Sugar()
}

// Nop returns a logger that discards everything; used by tests and by the
// client when no log path is given.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
