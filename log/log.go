// Package log provides the leveled logging facade used across rpc-perf.
package log

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
	NoColor:    true,
}).With().Timestamp().Logger()

// Setup configures the global log level from the environment.
// RPC_PERF_LOG accepts trace, debug, info, warn and error; default is info.
func Setup() {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("RPC_PERF_LOG")); err == nil && l != zerolog.NoLevel {
		level = l
	}
	logger = logger.Level(level)
}

// SetLevel overrides the global log level.
func SetLevel(level zerolog.Level) {
	logger = logger.Level(level)
}

func Debug(v ...interface{}) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func Info(v ...interface{}) {
	logger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func Warning(v ...interface{}) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

func Warningf(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...interface{}) {
	logger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...interface{}) {
	logger.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...interface{}) {
	logger.Fatal().Msgf(format, v...)
}
