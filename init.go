// Package signalsense hosts the process-wide defaults shared by the
// dashboard server and the command line tools.
package signalsense

import (
	"os"
	"strconv"

	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/logger/zerolog"
)

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

const (
	envLogLevel      = "SIGNALSENSE_LOG_LEVEL"
	envLogTimeFormat = "SIGNALSENSE_LOG_TIME_FORMAT"
	envLogColor      = "SIGNALSENSE_LOG_COLOR"
	envLogJSON       = "SIGNALSENSE_LOG_JSON"
)

// DefaultLog is configured from the SIGNALSENSE_LOG_* environment at start up.
var DefaultLog logger.Logger

func init() {
	log, err := NewLogger(LogOptions{
		Level:      envOr(envLogLevel, defaultLogLevel),
		TimeLayout: envOr(envLogTimeFormat, defaultLogTimeFormat),
		Colored:    envBool(envLogColor, defaultLogColored),
		JSON:       envBool(envLogJSON, defaultLogJSON),
	})
	if err != nil {
		panic(err)
	}
	DefaultLog = log
}

// LogOptions mirrors the log section of the configuration file.
type LogOptions struct {
	Level      string
	TimeLayout string
	Colored    bool
	JSON       bool
}

// NewLogger builds a zerolog backed logger.
func NewLogger(opts LogOptions) (logger.Logger, error) {
	zl, err := zerolog.New(zerolog.Config{
		Level:      opts.Level,
		TimeLayout: opts.TimeLayout,
		Colored:    opts.Colored,
		JSON:       opts.JSON,
	})
	if err != nil {
		return nil, err
	}
	return zerolog.NewAdapter(zl), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key, fallback string) bool {
	v, err := strconv.ParseBool(envOr(key, fallback))
	if err != nil {
		v, _ = strconv.ParseBool(fallback)
	}
	return v
}
