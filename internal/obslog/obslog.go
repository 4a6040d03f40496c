// Package obslog is the daemon's logging convention: plain stdlib
// log.Printf with a component tag, mirroring how the teacher codebase
// logs (no structured logging library is pulled in for this).
package obslog

import "log"

// Logger tags every line with a component name, e.g. "perception",
// "visionapi", "mcp". Zero value is usable (tag "daemon").
type Logger struct {
	tag string
}

// New returns a Logger tagged with component.
func New(component string) *Logger {
	if component == "" {
		component = "daemon"
	}
	return &Logger{tag: component}
}

func (l *Logger) prefix() string {
	if l.tag == "" {
		return "daemon"
	}
	return l.tag
}

func (l *Logger) Printf(format string, args ...any) {
	log.Printf("["+l.prefix()+"] "+format, args...)
}

func (l *Logger) Println(args ...any) {
	all := append([]any{"[" + l.prefix() + "]"}, args...)
	log.Println(all...)
}

// With returns a child logger scoped to a sub-component, e.g.
// obslog.New("perception").With("cam=front-door").
func (l *Logger) With(suffix string) *Logger {
	return &Logger{tag: l.prefix() + " " + suffix}
}
