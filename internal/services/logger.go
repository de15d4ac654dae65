package services

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger for a binary.
// Development builds get the human readable console writer.
func InitLogger(service, level string, production bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if production {
		zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
		return
	}
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("service", service).Logger()
}
