package utils

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel orders log severities; a logger emits records at or above its
// configured level.
type LogLevel int

const (
	Critical LogLevel = 50
	Error    LogLevel = 40
	Warning  LogLevel = 30
	Info     LogLevel = 20
	Debug    LogLevel = 10
)

// Logger is the leveled logger every component carries, one per prefix
// ("run-guard", "output-worker", "budgets-handler", ...). Records are
// written as "[prefix] [LEVEL] msg k=v k=v" so grep by component works.
type Logger struct {
	prefix string
	out    *log.Logger
	mu     sync.Mutex
	level  LogLevel
}

// NewLogger creates a logger for a component. Level defaults to Warning;
// pass an explicit level to see Info/Debug records.
func NewLogger(prefix string, level ...LogLevel) *Logger {
	lvl := Warning
	if len(level) > 0 {
		lvl = level[0]
	}
	return &Logger{
		prefix: prefix,
		out:    log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		level:  lvl,
	}
}

// Info logs an informational message with key-value pairs.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.emit(Info, "INFO", msg, keyvals...)
}

// Warn logs a warning with key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.emit(Warning, "WARN", msg, keyvals...)
}

// Error logs an error with key-value pairs.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.emit(Error, "ERROR", msg, keyvals...)
}

// Debug logs a debug message with key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.emit(Debug, "DEBUG", msg, keyvals...)
}

func (l *Logger) emit(level LogLevel, tag, msg string, keyvals ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level > level {
		return
	}

	line := fmt.Sprintf("[%s] %s", tag, msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	l.out.Println(line)
}
