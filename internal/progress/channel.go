// Package progress implements C3, the progress fabric: channel name
// normalisation, the publish contract, and snapshot retrieval, backed by
// Redis (adapted from the teacher's single-job ProgressReporter in
// progress/progress.go, generalized from a point-to-point callback reporter
// to a multi-subscriber pub/sub-plus-snapshot fabric).
package progress

import "strings"

const (
	channelPrefix     = "progress:project:"
	legacyProjectOnly = "project:"
)

// Normalize canonicalises any of the legal channel spellings of §4.3.1 down
// to exactly one form, `progress:project:<id>`. It accepts a bare id, a
// `project:<id>` spelling, the canonical form itself, and any accidental
// repetition of those prefixes (e.g. a caller that normalises twice, or
// double-normalises a value it read back from storage). Invariant 4 of §8
// requires `Normalize(Normalize(x)) == Normalize(x)`.
func Normalize(channel string) string {
	id := channel
	for {
		switch {
		case strings.HasPrefix(id, channelPrefix):
			id = strings.TrimPrefix(id, channelPrefix)
		case strings.HasPrefix(id, legacyProjectOnly):
			id = strings.TrimPrefix(id, legacyProjectOnly)
		default:
			return channelPrefix + id
		}
	}
}
