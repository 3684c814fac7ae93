// Package logger wraps zerolog with the small set of helpers the rest of
// the kernel calls: leveled, structured logging with a "component" field
// on every line, matching the Info/Warn/Error call shape used throughout
// the corpus's trading engines.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	base zerolog.Logger
	once sync.Once
)

func root() zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		var w io.Writer = os.Stdout
		if os.Getenv("LOG_FORMAT") != "json" {
			w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		}
		level := zerolog.InfoLevel
		if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			level = lvl
		}
		base = zerolog.New(w).Level(level).With().Timestamp().Logger()
	})
	return base
}

// Logger is a component-scoped logger. Created once per package/subsystem
// at startup and held as a field, not recreated per call.
type Logger struct {
	z zerolog.Logger
}

// For returns a logger tagged with "component": name.
func For(component string) Logger {
	return Logger{z: root().With().Str("component", component).Logger()}
}

func (l Logger) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l Logger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l Logger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l Logger) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

// With returns an event builder for structured fields, e.g.
// l.With().Str("strategy", id).Int("qty", qty).Msg("admitted")
func (l Logger) With() *zerolog.Event { return l.z.Info() }

// Err logs at error level with a structured "error" field.
func (l Logger) Err(err error, msg string) { l.z.Error().Err(err).Msg(msg) }
