package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	defaultLogger *zap.Logger
	loggerMu      sync.RWMutex
)

// Initialize replaces the process logger. Services call it once at start up.
func Initialize(level string, isDebug bool) error {
	l, err := New(level, isDebug)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	defaultLogger = l
	loggerMu.Unlock()
	return nil
}

func New(level string, isDebug bool) (*zap.Logger, error) {
	var config zap.Config

	if isDebug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	config.Level = zap.NewAtomicLevelAt(parseLevel(level))

	return config.Build()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		return zap.DebugLevel
	case "INFO":
		return zap.InfoLevel
	case "WARN", "WARNING":
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

// currentLogger returns a no-op logger until Initialize is called, so library
// packages stay usable from tools and tests.
func currentLogger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()

	if defaultLogger == nil {
		return zap.NewNop()
	}
	return defaultLogger
}

func Debug(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Panic(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Panic(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	currentLogger().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

func DefaultLogger() *zap.Logger {
	return currentLogger()
}

func Sugar() *zap.SugaredLogger {
	return currentLogger().Sugar()
}

// PrintfLogger adapts the process logger to clients that log through Printf.
type PrintfLogger struct {
	source zap.Field
}

func (l PrintfLogger) Printf(format string, v ...interface{}) {
	currentLogger().Sugar().With(l.source).Debugf(format, v...)
}

// CloudflareLogger is handed to the cloudflare api client in debug mode.
func CloudflareLogger() PrintfLogger {
	return PrintfLogger{source: SourceThumbnail}
}
