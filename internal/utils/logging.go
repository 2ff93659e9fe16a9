package utils

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// SetLogger replaces the package logger; main calls it once at startup.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

// GetLogger returns the shared logger, building a production one on first use.
func GetLogger() *zap.Logger {
	loggerOnce.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
		logger = l
	})
	return logger
}

// LoggerOr lets constructors accept a nil logger.
func LoggerOr(l *zap.Logger) *zap.Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}
