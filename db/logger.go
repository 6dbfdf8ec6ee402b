package db

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marcmoiagese/SpartaClaims/cnf"
)

var dbLog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "db").Logger()

// SetLogOutput redirigeix el logger del paquet (útil als tests).
func SetLogOutput(l zerolog.Logger) {
	dbLog = l.With().Str("component", "db").Logger()
}

func logLevel() string {
	if cnf.Config == nil {
		return "info"
	}
	l := strings.ToLower(strings.TrimSpace(cnf.Config["LOG_LEVEL"]))
	if l == "" {
		return "info"
	}
	return l
}

func logInfof(format string, v ...interface{}) {
	l := logLevel()
	if l == "silent" || l == "error" {
		return
	}
	dbLog.Info().Msgf(format, v...)
}

func logErrorf(format string, v ...interface{}) {
	if logLevel() == "silent" {
		return
	}
	dbLog.Error().Msgf(format, v...)
}
