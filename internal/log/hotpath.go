package log

import (
	"os"

	"github.com/rs/zerolog"
)

// Hot is a zerolog sink for high-volume event streams, avoiding the
// allocation cost of the logfmt path in Log/LogError. No package writes to
// it: the worker pool and gateway log through Log, LogError, NoID, Warn and
// Debug.
var Hot = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()

// SetHotLevel maps the same LOG_LEVEL string used by Log/LogError onto
// zerolog's level so both sinks agree on verbosity.
func SetHotLevel(level string) {
	Level = level
	switch level {
	case "DEBUG":
		Hot = Hot.Level(zerolog.DebugLevel)
	case "WARN":
		Hot = Hot.Level(zerolog.WarnLevel)
	case "ERROR":
		Hot = Hot.Level(zerolog.ErrorLevel)
	default:
		Hot = Hot.Level(zerolog.InfoLevel)
	}
}
