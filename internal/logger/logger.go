package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is a shorthand for F("error", err)
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Config holds logger configuration
type Config struct {
	Level      Level     // Minimum log level
	FilePath   string    // Path to log file, empty disables file output
	MaxSize    int64     // Max size in bytes before rotation (default: 10MB)
	MaxAge     int       // Max age in days (default: 7)
	MaxBackups int       // Max number of backup files (default: 5)
	Console    bool      // Mirror entries to stderr
	Output     io.Writer // Extra sink, used by tests
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	logPath := filepath.Join(home, ".instafeed", "logs", "instafeed.log")

	return Config{
		Level:      INFO,
		FilePath:   logPath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    false, // keeps the TUI clean
	}
}

// sink is the shared output state of a logger and all of its children.
type sink struct {
	mu      sync.Mutex
	config  Config
	file    *os.File
	writers []io.Writer
}

// Logger writes leveled, structured entries.
type Logger struct {
	out    *sink
	fields []Field
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Init initializes the global logger. Calling it again replaces the previous one.
func Init(config Config) error {
	l, err := New(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = 10 * 1024 * 1024
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 7
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 5
	}

	s := &sink{config: config}

	if config.FilePath != "" {
		logDir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = file
	}
	s.resetWriters()

	s.mu.Lock()
	err := s.rotateIfNeeded()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &Logger{out: s}, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{out: &sink{config: Config{Level: ERROR + 1}}}
}

func (s *sink) resetWriters() {
	s.writers = s.writers[:0]
	if s.file != nil {
		s.writers = append(s.writers, s.file)
	}
	if s.config.Console {
		s.writers = append(s.writers, os.Stderr)
	}
	if s.config.Output != nil {
		s.writers = append(s.writers, s.config.Output)
	}
}

// rotateIfNeeded checks if log rotation is needed and performs it. Caller holds s.mu.
func (s *sink) rotateIfNeeded() error {
	if s.file == nil {
		return nil
	}

	info, err := s.file.Stat()
	if err != nil {
		return err
	}

	if info.Size() >= s.config.MaxSize {
		return s.rotate()
	}

	if info.Size() > 0 && time.Since(info.ModTime()) > time.Duration(s.config.MaxAge)*24*time.Hour {
		return s.rotate()
	}

	return nil
}

// rotate shifts backups up by one and reopens the log file. Caller holds s.mu.
func (s *sink) rotate() error {
	if s.file != nil {
		_ = s.file.Close()
	}

	for i := s.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", s.config.FilePath, i)
		newPath := fmt.Sprintf("%s.%d", s.config.FilePath, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	if _, err := os.Stat(s.config.FilePath); err == nil {
		backupPath := fmt.Sprintf("%s.1", s.config.FilePath)
		if err := os.Rename(s.config.FilePath, backupPath); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(s.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	s.file = file
	s.resetWriters()
	return nil
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if l == nil || l.out == nil || level < l.out.config.Level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	var b strings.Builder
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(&b, "[%s] %s %s: %s", timestamp, level.String(), caller, msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range l.fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')
	entry := []byte(b.String())

	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.rotateIfNeeded()
	for _, w := range s.writers {
		_, _ = w.Write(entry)
	}
}

// WithFields creates a new logger with preset fields sharing the same outputs
func (l *Logger) WithFields(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{out: l.out, fields: merged}
}

// Component tags every entry with component=name.
func (l *Logger) Component(name string) *Logger {
	return l.WithFields(F("component", name))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ERROR, msg, fields)
}

// Close closes the underlying log file
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		s.resetWriters()
		return err
	}
	return nil
}

// Global logger functions

func global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// L returns the global logger, or a discarding logger before Init.
func L() *Logger {
	if l := global(); l != nil {
		return l
	}
	return Discard()
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	global().log(DEBUG, msg, fields)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	global().log(INFO, msg, fields)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	global().log(WARN, msg, fields)
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	global().log(ERROR, msg, fields)
}

// Close closes the global logger
func Close() error {
	return global().Close()
}

// GetConfig returns the current logger configuration
func GetConfig() Config {
	if l := global(); l != nil {
		return l.out.config
	}
	return DefaultConfig()
}
