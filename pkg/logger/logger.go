// Package logger defines the logging contract shared by every signalsense package.
package logger

// Level is a logging severity understood by every adapter.
type Level int8

const (
	Disabled Level = iota - 1
	TraceLevel
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Logger is the structured logger used across the dashboard.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}

// ParseLevel maps a level name (trace, debug, info, warn, error, fatal, off)
// to a Level, returning InfoLevel for unknown names.
func ParseLevel(name string) Level {
	switch name {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	case "off", "disabled":
		return Disabled
	default:
		return InfoLevel
	}
}
