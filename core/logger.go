package core

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "core").Logger()

// SetLogLevel accepta debug, info, error i silent.
func SetLogLevel(levelStr string) {
	lvl := strings.ToLower(strings.TrimSpace(levelStr))
	switch lvl {
	case "silent":
		logger = logger.Level(zerolog.Disabled)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	logger.Info().Str("level", lvl).Msg("nivell de log configurat")
}

// AttachLoggerOutput redirigeix la sortida (fitxer, buffer de tests...).
func AttachLoggerOutput(w io.Writer) {
	logger = logger.Output(w)
}

// Log dona accés al logger estructurat per afegir camps de context.
func Log() *zerolog.Logger {
	return &logger
}

func Debugf(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}
