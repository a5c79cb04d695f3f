// Package log provides per-request contextual logging, adapted from the
// teacher's logfmt-based request-id logger (log/logger.go): a small cache
// keyed by project/request id accumulates context so callers don't have to
// thread key/value pairs through every call site.
package log

import (
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	gocache "github.com/patrickmn/go-cache"
)

var loggerCache = gocache.New(6*time.Hour, 10*time.Minute)

// Level gates which severities reach the sink; set from LOG_LEVEL at
// process start (see internal/config).
var Level = "INFO"

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func enabled(level string) bool {
	return levelRank[level] >= levelRank[Level]
}

// AddContext permanently attaches key/values to every future log line for
// this id (a project id, connection id, or task id).
func AddContext(id string, keyvals ...interface{}) {
	logger := kitlog.With(getLogger(id), redact(keyvals)...)
	loggerCache.SetDefault(id, logger)
}

// Log writes an INFO-level line with id as context.
func Log(id string, message string, keyvals ...interface{}) {
	if !enabled("INFO") {
		return
	}
	_ = kitlog.With(getLogger(id), "msg", message).Log(redact(keyvals)...)
}

// Debug writes a DEBUG-level line; the gateway uses it for inbound frames
// of an unknown type.
func Debug(id string, message string, keyvals ...interface{}) {
	if !enabled("DEBUG") {
		return
	}
	_ = kitlog.With(getLogger(id), "msg", message, "level", "debug").Log(redact(keyvals)...)
}

// Warn writes a WARN-level line, used for non-fatal conditions such as a
// data-sync failure that does not fail the project (§4.4.6).
func Warn(id string, message string, keyvals ...interface{}) {
	if !enabled("WARN") {
		return
	}
	_ = kitlog.With(getLogger(id), "msg", message, "level", "warn").Log(redact(keyvals)...)
}

// NoID logs without an id, used sparingly for process-wide events.
func NoID(message string, keyvals ...interface{}) {
	if !enabled("INFO") {
		return
	}
	_ = kitlog.With(newLogger(), "msg", message).Log(redact(keyvals)...)
}

// LogError writes an ERROR-level line and always fires regardless of Level.
func LogError(id string, message string, err error, keyvals ...interface{}) {
	l := kitlog.With(getLogger(id), "msg", message, "err", err.Error())
	_ = l.Log(redact(keyvals)...)
}

func getLogger(id string) kitlog.Logger {
	if logger, found := loggerCache.Get(id); found {
		return logger.(kitlog.Logger)
	}
	l := kitlog.With(newLogger(), "id", id)
	loggerCache.SetDefault(id, l)
	return l
}

func newLogger() kitlog.Logger {
	base := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	return kitlog.With(base, "ts", kitlog.DefaultTimestampUTC)
}

// redact scrubs URLs out of logged values so callback URLs, signed storage
// URLs, and LLM endpoints never leak credentials into logs.
func redact(keyvals []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keyvals))
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, v := keyvals[i], keyvals[i+1]
		out = append(out, k)
		switch s := v.(type) {
		case string:
			out = append(out, RedactURL(s))
		case *url.URL:
			if s != nil {
				out = append(out, s.Redacted())
			} else {
				out = append(out, v)
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

// RedactURL strips userinfo from a string that looks like a URL, leaving
// everything else untouched.
func RedactURL(s string) string {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http") && !strings.HasPrefix(lower, "s3") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}
