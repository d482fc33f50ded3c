package zerolog

import (
	"fmt"

	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/rs/zerolog"
)

// Adapter exposes a zerolog.Logger through logger.Logger.
type Adapter struct {
	zl *zerolog.Logger
}

var _ logger.Logger = (*Adapter)(nil)

// NewAdapter wraps zl.
func NewAdapter(zl *zerolog.Logger) *Adapter {
	return &Adapter{zl: zl}
}

// Nop returns an adapter that discards everything, handy in tests.
func Nop() *Adapter {
	zl := zerolog.Nop()
	return &Adapter{zl: &zl}
}

// WithField implements logger.Logger.
func (a *Adapter) WithField(key string, value any) logger.Logger {
	child := a.zl.With().Interface(key, value).Logger()
	return &Adapter{zl: &child}
}

// WithFields implements logger.Logger.
func (a *Adapter) WithFields(fields map[string]any) logger.Logger {
	child := a.zl.With().Fields(fields).Logger()
	return &Adapter{zl: &child}
}

// WithError implements logger.Logger.
func (a *Adapter) WithError(err error) logger.Logger {
	child := a.zl.With().Err(err).Logger()
	return &Adapter{zl: &child}
}

// Debug implements logger.Logger.
func (a *Adapter) Debug(args ...any) {
	a.zl.Debug().Msg(fmt.Sprint(args...))
}

// Info implements logger.Logger.
func (a *Adapter) Info(args ...any) {
	a.zl.Info().Msg(fmt.Sprint(args...))
}

// Warn implements logger.Logger.
func (a *Adapter) Warn(args ...any) {
	a.zl.Warn().Msg(fmt.Sprint(args...))
}

// Error implements logger.Logger.
func (a *Adapter) Error(args ...any) {
	a.zl.Error().Msg(fmt.Sprint(args...))
}

// Fatal implements logger.Logger.
func (a *Adapter) Fatal(args ...any) {
	a.zl.Fatal().Msg(fmt.Sprint(args...))
}

// Debugf implements logger.Logger.
func (a *Adapter) Debugf(format string, args ...any) {
	a.zl.Debug().Msgf(format, args...)
}

// Infof implements logger.Logger.
func (a *Adapter) Infof(format string, args ...any) {
	a.zl.Info().Msgf(format, args...)
}

// Warnf implements logger.Logger.
func (a *Adapter) Warnf(format string, args ...any) {
	a.zl.Warn().Msgf(format, args...)
}

// Errorf implements logger.Logger.
func (a *Adapter) Errorf(format string, args ...any) {
	a.zl.Error().Msgf(format, args...)
}

// Fatalf implements logger.Logger.
func (a *Adapter) Fatalf(format string, args ...any) {
	a.zl.Fatal().Msgf(format, args...)
}

// SetLevel implements logger.Logger. The level is global, so every child
// adapter shares it.
func (a *Adapter) SetLevel(level logger.Level) {
	zerolog.SetGlobalLevel(toZerolog[level])
}

// GetLevel implements logger.Logger.
func (a *Adapter) GetLevel() logger.Level {
	for l, zl := range toZerolog {
		if zl == zerolog.GlobalLevel() {
			return l
		}
	}
	return logger.InfoLevel
}

var toZerolog = map[logger.Level]zerolog.Level{
	logger.Disabled:   zerolog.Disabled,
	logger.TraceLevel: zerolog.TraceLevel,
	logger.DebugLevel: zerolog.DebugLevel,
	logger.InfoLevel:  zerolog.InfoLevel,
	logger.WarnLevel:  zerolog.WarnLevel,
	logger.ErrorLevel: zerolog.ErrorLevel,
	logger.FatalLevel: zerolog.FatalLevel,
}
