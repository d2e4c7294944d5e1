package internal

import (
	"io"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *SecureLogger
	// logFile is the file opened by the last InitLogger, closed when replaced
	logFile     *os.File
	loggerMutex sync.RWMutex
)

// InitLogger builds the global logger from config. A later call replaces the
// logger and closes the log file opened by the earlier one.
func InitLogger(config *Config) error {
	var (
		output io.Writer = os.Stderr
		file   *os.File
	)
	if config.LogFile != "" {
		f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return NewValidationErrorWithValue("log_file", "failed to open log file: "+err.Error(), config.LogFile).
				WithSuggestion("Check file permissions and path validity")
		}
		output, file = f, f
	}

	logger := newLoggerFor(output, config)

	loggerMutex.Lock()
	previous := logFile
	globalLogger, logFile = logger, file
	loggerMutex.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// newLoggerFor picks the JSON or console encoder named by config.LogFormat
func newLoggerFor(output io.Writer, config *Config) *SecureLogger {
	level := parseLogLevel(config.LogLevel)
	if strings.EqualFold(config.LogFormat, "json") {
		return NewSecureLogger(output, level, config.EnableDebug, config.QuietMode)
	}
	return NewConsoleLogger(output, level, config.EnableDebug, config.QuietMode)
}

// SetLogger replaces the global logger
func SetLogger(logger *SecureLogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = logger
}

// GetLogger returns the global logger instance
func GetLogger() *SecureLogger {
	loggerMutex.RLock()
	logger := globalLogger
	loggerMutex.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefaultLogger(false, false)
	}
	return globalLogger
}

// parseLogLevel converts string log level to LogLevel enum
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Convenience functions for global logging

// LogError logs an error message using the global logger
func LogError(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// LogWarn logs a warning message using the global logger
func LogWarn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// LogInfo logs an info message using the global logger
func LogInfo(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// LogDebug logs a debug message using the global logger
func LogDebug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// LogLanzouError logs a LanzouError at the level matching its severity
func LogLanzouError(err *LanzouError) {
	logger := GetLogger()

	switch err.Severity {
	case SeverityCritical:
		logger.Error("CRITICAL: %s", err.DetailedError())
	case SeverityWarning:
		logger.Warn("%s", err.DetailedError())
	case SeverityInfo:
		logger.Info("%s", err.DetailedError())
	default:
		logger.Error("%s", err.DetailedError())
	}
}

// LogValidationError logs a ValidationError
func LogValidationError(err *ValidationError) {
	GetLogger().Error("Validation Error: %s", err.Error())
}
