package fs

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// EnvVerbose enables resolution tracing on stderr when set to "1"
const EnvVerbose = "PRELOADFS_VERBOSE"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LevelFromEnv returns LogLevelDebug when PRELOADFS_VERBOSE is exactly "1"
// and LogLevelError otherwise.
func LevelFromEnv() LogLevel {
	if os.Getenv(EnvVerbose) == "1" {
		return LogLevelDebug
	}
	return LogLevelError
}

// Logger provides leveled logging for the overlay layer
type Logger struct {
	level  LogLevel
	logger *log.Logger
	mu     sync.RWMutex
}

var (
	// Global logger instance
	globalLogger *Logger
	loggerOnce   sync.Once
)

// InitLogger initializes the global logger
func InitLogger(level LogLevel) {
	loggerOnce.Do(func() {
		globalLogger = NewLogger(level, os.Stderr)
	})
}

// NewLogger creates a new Logger instance
func NewLogger(level LogLevel, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(output, "", 0),
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Enabled reports whether messages at level are emitted
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, args...)

	l.logger.Printf("[%s] preloadfs %s: %s", timestamp, level.String(), message)
}

// Global logging functions that use the global logger

// Debug logs a debug message to the global logger
func Debug(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debug(format, args...)
	}
}

// Info logs an info message to the global logger
func Info(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Info(format, args...)
	}
}

// Warn logs a warning message to the global logger
func Warn(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warn(format, args...)
	}
}

// Error logs an error message to the global logger
func Error(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Error(format, args...)
	}
}

// SetGlobalLevel sets the log level for the global logger
func SetGlobalLevel(level LogLevel) {
	if globalLogger != nil {
		globalLogger.SetLevel(level)
	}
}

// GetGlobalLevel returns the current global log level
func GetGlobalLevel() LogLevel {
	if globalLogger != nil {
		return globalLogger.GetLevel()
	}
	return LogLevelError
}

// LogResolution traces one resolver decision
func LogResolution(path, candidate string, kind Kind, matched bool) {
	if matched {
		Debug("overlay %s: %s -> %s", kind, path, candidate)
	} else {
		Debug("checked %s candidate %s for %s: no match", kind, candidate, path)
	}
}

// LogTeardown logs the outcome of closing a merged directory
func LogTeardown(path string, handles int, err error) {
	if err != nil {
		Error("closedir %s: %d underlying handles, close failed: %v", path, handles, err)
	} else {
		Debug("closedir %s: released %d underlying handles", path, handles)
	}
}
