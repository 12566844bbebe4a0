package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Initialize sets up the global logger based on the environment.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger instance.
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback for tests or before init
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// ForRoom returns a logger pre-tagged with a room's short code. Rooms hold
// on to this so every line they emit carries the code.
func ForRoom(code string) *zap.Logger {
	return GetLogger().With(zap.String("room_code", code))
}

// Info logs a message at InfoLevel.
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, withService(fields)...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, withService(fields)...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, withService(fields)...)
}

// Fatal logs a message at FatalLevel.
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, withService(fields)...)
}

func withService(fields []zap.Field) []zap.Field {
	return append(fields, zap.String("service", "quizbox"))
}
