// Package logger implements the hostable Logger component (spec §4.B):
// a level-filtered, chainable sink that is-a component.Base. It is the
// runtime's one domain-level, reconfigurable logging primitive, reachable
// by name from a Container — distinct from the internal obslog plumbing
// the runtime uses to describe its own wiring.
package logger

import (
	"fmt"
	"strings"
	"time"

	"iotcore/internal/component"
)

// maxLineBytes is the implementation-chosen truncation cap for rendered
// lines (spec requires >= 1024).
const maxLineBytes = 4096

// Logger is a level-filtered, chainable log sink. Forwarding to Next is
// unconditional on Next's own level: each link in the chain filters
// independently.
type Logger struct {
	*component.Base

	level Level
	next  *Logger
	sink  Sink
	name  string
}

// Config configures a Logger at construction time.
type Config struct {
	Name  string
	Level Level
	Next  *Logger
	// Sink, when non-nil, overrides To — used for custom sinks.
	Sink Sink
	// To selects a built-in sink: "file:<path>", "udp:<host>:<port>", or
	// "" for console.
	To string
}

// New constructs a Logger in the Initial state. Construction failures
// (e.g. an unopenable sink target named in To) are configuration errors
// and are returned rather than silently degraded — once running, sink
// failures become silent per spec §4.B.
func New(cfg Config, factory component.FactoryInfo, rawConfig map[string]string) (*Logger, error) {
	s := cfg.Sink
	if s == nil {
		var err error
		s, err = sinkFromSpec(cfg.To)
		if err != nil {
			return nil, fmt.Errorf("logger %s: %w", cfg.Name, err)
		}
	}

	l := &Logger{
		level: cfg.Level,
		next:  cfg.Next,
		sink:  s,
		name:  cfg.Name,
	}
	l.Base = component.New(cfg.Name, factory, rawConfig, component.Hooks{
		Stop: l.closeSink,
	}, l.reconfigure)
	return l, nil
}

func sinkFromSpec(to string) (Sink, error) {
	switch {
	case to == "":
		return newConsoleSink(nil), nil
	case strings.HasPrefix(to, "file:"):
		return newFileSink(strings.TrimPrefix(to, "file:"))
	case strings.HasPrefix(to, "udp:"):
		return newUDPSink(strings.TrimPrefix(to, "udp:"))
	default:
		return nil, fmt.Errorf("unrecognized sink spec %q", to)
	}
}

func (l *Logger) closeSink() error {
	l.Lock()
	s := l.sink
	l.sink = nil
	l.Unlock()
	if s != nil {
		s.close()
	}
	return nil
}

// SetLevel changes the logger's threshold. Thread-safe, guarded by the
// embedded lifecycle lock.
func (l *Logger) SetLevel(level Level) {
	l.Lock()
	defer l.Unlock()
	l.level = level
}

// Level returns the current threshold.
func (l *Logger) Level() Level {
	l.Lock()
	defer l.Unlock()
	return l.level
}

// SetNext installs (or clears, with nil) the downstream logger in the
// chain. Thread-safe, guarded by the embedded lifecycle lock.
func (l *Logger) SetNext(next *Logger) {
	l.Lock()
	defer l.Unlock()
	l.next = next
}

// reconfigure is the Base reconfigure hook: only Level is
// live-updatable; Next, To and Name keys are ignored.
func (l *Logger) reconfigure(cfg map[string]string) bool {
	accepted := false
	if lvl, ok := cfg["Level"]; ok {
		level, err := ParseLevel(lvl)
		if err != nil {
			return false
		}
		l.SetLevel(level)
		accepted = true
	}
	return accepted
}

// Log renders "msg" if and only if level does not exceed the logger's
// configured level and the component is Running, writes it to the sink,
// then forwards the rendered message (not the raw format string) down
// the chain so each link applies its own timestamp, name and level gate.
func (l *Logger) Log(level Level, format string, args ...any) {
	l.logMessage(level, fmt.Sprintf(format, args...))
}

func (l *Logger) logMessage(level Level, msg string) {
	l.Lock()
	cfgLevel := l.level
	s := l.sink
	name := l.name
	next := l.next
	l.Unlock()

	if level > cfgLevel || l.State() != component.Running {
		return
	}

	now := time.Now()
	line := fmt.Sprintf("%d %s: %s: %s\n", now.Unix(), name, level, msg)
	if len(line) > maxLineBytes {
		line = line[:maxLineBytes]
	}
	if s != nil {
		s.write(level, now.UnixNano(), line)
	}

	if next != nil {
		next.logMessage(level, msg)
	}
}

// Errorf, Warnf, Infof, Debugf and Tracef are convenience wrappers.
func (l *Logger) Errorf(format string, args ...any) { l.Log(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Log(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Log(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.Log(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.Log(LevelTrace, format, args...) }
