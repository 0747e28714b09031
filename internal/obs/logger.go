package obs

import (
	"fmt"
	"log"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value such as "debug" or "WARN" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info", "":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("obs: unknown log level %q", s)
}

// Logger is the logging hook used by the proxy server, pool and relay.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Logf(level Level, format string, args ...interface{}) {}

// StdLogger writes through a standard library logger, dropping lines
// below Min.
type StdLogger struct {
	L    *log.Logger
	Min  Level
	Pref string // optional prefix per log line
}

func (s StdLogger) Logf(level Level, format string, args ...interface{}) {
	if s.L == nil || level < s.Min {
		return
	}
	if s.Pref != "" {
		s.L.Printf("%s[%s] "+format, append([]interface{}{s.Pref, level.String()}, args...)...)
		return
	}
	s.L.Printf("[%s] "+format, append([]interface{}{level.String()}, args...)...)
}

// taggedLogger prepends a fixed tag, e.g. a task or worker id.
type taggedLogger struct {
	next Logger
	tag  string
}

// Tagged returns a Logger that prefixes every message with "tag ".
// A nil next logger yields a NopLogger.
func Tagged(next Logger, tag string) Logger {
	if next == nil {
		return NopLogger{}
	}
	if tag == "" {
		return next
	}
	return taggedLogger{next: next, tag: tag}
}

func (t taggedLogger) Logf(level Level, format string, args ...interface{}) {
	t.next.Logf(level, "%s "+format, append([]interface{}{t.tag}, args...)...)
}
