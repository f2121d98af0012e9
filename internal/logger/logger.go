// Package logger is a leveled, module-tagged logger. Call sites name the
// component they log for: logger.Info("Reader", "resumed after %d ticks", n).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var levels = [...]struct {
	name  string
	color *color.Color
}{
	DEBUG:  {"DEBUG", color.New(color.FgCyan)},
	INFO:   {"INFO", color.New(color.FgGreen)},
	WARN:   {"WARN", color.New(color.FgYellow)},
	ERROR:  {"ERROR", color.New(color.FgRed, color.Bold)},
	SILENT: {"SILENT", nil},
}

// Logger writes one line per message to its output.
type Logger struct {
	level    atomic.Int32
	useColor bool
	out      *log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init sets up the global logger. Only the first call has an effect;
// use SetLevel to change the level afterwards.
func Init(level LogLevel, output io.Writer, useColor bool) {
	once.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a Logger writing to output (stderr when nil).
// Color is disabled when NO_COLOR is set.
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		useColor: useColor && os.Getenv("NO_COLOR") == "",
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Log writes "[LEVEL] [module] message" when level is enabled.
func (l *Logger) Log(level LogLevel, module string, format string, args ...any) {
	if level < LogLevel(l.level.Load()) || level >= SILENT {
		return
	}

	prefix := "[" + levels[level].name + "]"
	if l.useColor {
		c := *levels[level].color
		c.EnableColor()
		prefix = c.Sprint(prefix)
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

func logf(level LogLevel, module, format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Log(level, module, format, args...)
	}
}

// Debug logs a debug message using the global logger
func Debug(module, format string, args ...any) { logf(DEBUG, module, format, args...) }

// Info logs an info message using the global logger
func Info(module, format string, args ...any) { logf(INFO, module, format, args...) }

// Warn logs a warning message using the global logger
func Warn(module, format string, args ...any) { logf(WARN, module, format, args...) }

// Error logs an error message using the global logger
func Error(module, format string, args ...any) { logf(ERROR, module, format, args...) }

// ParseLevel parses a log level name, case-insensitive for the common
// spellings.
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levels) {
		return levels[l].name
	}
	return "UNKNOWN"
}
