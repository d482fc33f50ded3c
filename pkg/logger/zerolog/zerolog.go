// Package zerolog builds signalsense loggers on top of rs/zerolog.
package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Config controls the console output of New.
type Config struct {
	Level      string
	TimeLayout string
	Colored    bool
	JSON       bool
	Out        io.Writer
}

// New creates a zerolog logger writing to cfg.Out (stdout when nil).
// JSON output skips the console writer entirely.
func New(cfg Config) (*zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	if cfg.JSON {
		zl := zerolog.New(out).With().Timestamp().Logger()
		return &zl, nil
	}

	console := zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         !cfg.Colored,
		TimeFormat:      cfg.TimeLayout,
		FormatLevel:     levelTag,
		FormatMessage:   padMessage,
		FormatCaller:    shortCaller,
		FormatTimestamp: func(i any) string { return stamp(i, cfg.TimeLayout) },
	}

	zl := zerolog.New(console).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &zl, nil
}

var levelTags = map[string]func(string, ...any) string{
	zerolog.LevelTraceValue: term.Cyanf,
	zerolog.LevelDebugValue: term.Cyanf,
	zerolog.LevelInfoValue:  term.Greenf,
	zerolog.LevelWarnValue:  term.Yellowf,
	zerolog.LevelErrorValue: term.Redf,
	zerolog.LevelFatalValue: term.Redf,
	zerolog.LevelPanicValue: term.Redf,
}

func levelTag(i any) string {
	name, _ := i.(string)
	paint, ok := levelTags[name]
	if !ok {
		return term.Whitef("[???]")
	}
	return paint("[%s]", strings.ToUpper(name[:3]))
}

func padMessage(i any) string {
	const width = 72

	msg, _ := i.(string)
	if msg == "" {
		return ">"
	}
	if len(msg) > width {
		msg = msg[:width]
	}
	return term.Whitef("> %-*s", width, msg)
}

func shortCaller(i any) string {
	path, _ := i.(string)
	if path == "" {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(path), ":")
	if !found {
		return term.Yellowf("[%s]", file)
	}
	if len(file) > 16 {
		file = file[:16]
	}
	return term.Yellowf("[%-16s:%4s]", file, line)
}

func stamp(i any, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		raw = ts.In(time.Local).Format(layout)
	}
	return term.Cyanf("[%s]", raw)
}
