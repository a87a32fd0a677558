package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Interactive runs get the console
// writer on stderr so log lines don't interleave with the conversation feed on
// stdout; setting CONSULT_LOG_JSON=1 switches to plain JSON lines.
func Init(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if os.Getenv("CONSULT_LOG_JSON") == "1" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "consult").Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).With().Str("service", "consult").Logger()
}
