// Structured logging for the rail controller
//
// Leveled text or JSON output with per-component prefixes and
// key-value fields. The daemon wires the default logger; domain
// packages log through the standard library and inherit its output.
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
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

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
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

// OutputFormat specifies the output format for log messages
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// Logger writes leveled log messages with a component prefix
type Logger struct {
	mu         sync.Mutex
	prefix     string
	writer     io.Writer
	level      LogLevel
	timeFormat string
	colorize   bool
	outFormat  OutputFormat
}

var ansiColors = map[LogLevel]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// New creates a new logger with the given component prefix
func New(prefix string) *Logger {
	return &Logger{
		prefix:     prefix,
		writer:     os.Stderr,
		level:      INFO,
		timeFormat: "2006-01-02 15:04:05.000",
		colorize:   os.Getenv("NO_COLOR") == "",
		outFormat:  FormatText,
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetWriter sets the output writer
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// SetColorize enables or disables colorized output
func (l *Logger) SetColorize(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = enable
}

// SetFormat sets the output format (FormatText or FormatJSON)
func (l *Logger) SetFormat(format OutputFormat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outFormat = format
}

// Component returns a logger sharing this logger's settings under a
// new prefix.
func (l *Logger) Component(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix:     prefix,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		colorize:   l.colorize,
		outFormat:  l.outFormat,
	}
}

func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	var line string
	if l.outFormat == FormatJSON {
		line = l.formatJSON(level, msg, fields)
	} else {
		line = l.formatText(level, msg, fields)
	}
	fmt.Fprint(l.writer, line)
}

// formatText renders "timestamp [LEVEL] prefix: msg {k=v, ...}"
func (l *Logger) formatText(level LogLevel, msg string, fields Fields) string {
	var sb strings.Builder

	sb.WriteString(time.Now().Format(l.timeFormat))
	sb.WriteString(" [")
	fmt.Fprintf(&sb, "%-5s", level.String())
	sb.WriteString("] ")

	if l.colorize {
		sb.WriteString(ansiColors[level])
	}
	sb.WriteString(l.prefix)
	if l.colorize {
		sb.WriteString(ansiReset)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		sb.WriteString(" {")
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, fields[k])
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return sb.String()
}

type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) formatJSON(level LogLevel, msg string, fields Fields) string {
	entry := jsonEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Logger:    l.prefix,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal log entry: %v"}`+"\n", err)
	}
	return string(data) + "\n"
}

// Debug logs at DEBUG level
func (l *Logger) Debug(msg string, fields ...Fields) { l.log(DEBUG, msg, merge(fields)) }

// Info logs at INFO level
func (l *Logger) Info(msg string, fields ...Fields) { l.log(INFO, msg, merge(fields)) }

// Warn logs at WARN level
func (l *Logger) Warn(msg string, fields ...Fields) { l.log(WARN, msg, merge(fields)) }

// Error logs at ERROR level
func (l *Logger) Error(msg string, fields ...Fields) { l.log(ERROR, msg, merge(fields)) }

// Debugf logs a formatted message at DEBUG level
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted message at INFO level
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted message at WARN level
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted message at ERROR level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}

func merge(fields []Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[0]
	}
	out := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}
