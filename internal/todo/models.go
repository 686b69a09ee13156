package todo

import (
	"math"
	"strings"
	"time"
)

// DefaultSuffix is the only filename extension the server accepts.
const DefaultSuffix = ".txt"

// Document is one todo file, keyed by (Folder, Filename).
// Timestamps are UTC with microsecond precision.
type Document struct {
	Folder     string    `json:"folder" bson:"folder"`
	Filename   string    `json:"filename" bson:"filename"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt" bson:"modifiedAt"`
}

// PollResult is the outcome of a long poll. Files is only populated when
// Changed is true and is ordered by ModifiedAt descending.
type PollResult struct {
	Timestamp time.Time
	Changed   bool
	Files     []*Document
}

// ValidFilename reports whether name is an acceptable todo filename: a bare
// name (no path separators) ending in suffix.
func ValidFilename(name, suffix string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}
	return strings.HasSuffix(name, suffix)
}

// Truncate normalises t to the representation every store persists.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// Bounds of the representable microsecond range, in seconds.
const (
	maxEpochSeconds = math.MaxInt64 / 1e6
	minEpochSeconds = math.MinInt64 / 1e6
)

// FromEpochSeconds is the inverse of EpochSeconds. Non-finite input maps to
// the epoch itself; values beyond the microsecond range saturate.
func FromEpochSeconds(s float64) time.Time {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return time.Unix(0, 0).UTC()
	case s >= maxEpochSeconds:
		return time.UnixMicro(math.MaxInt64).UTC()
	case s <= minEpochSeconds:
		return time.UnixMicro(math.MinInt64).UTC()
	}
	return time.UnixMicro(int64(math.Round(s * 1e6))).UTC()
}
