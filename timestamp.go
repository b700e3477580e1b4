package xsinger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical wire form of time_extracted: UTC, microseconds, "Z".
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// TimestampResolution is the finest resolution that survives a round trip.
const TimestampResolution = time.Microsecond

// Years representable in TimestampLayout.
const (
	minTimestampYear = 1
	maxTimestampYear = 9999
)

// ErrNaiveTimestamp is wrapped when a timestamp carries no timezone offset.
var ErrNaiveTimestamp = errors.New("timestamp has no timezone offset")

// Aware layouts accepted by ParseTimestamp. Fractional seconds of any precision
// are accepted after the seconds field even though the layouts omit them.
var awareLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatTimestamp renders t in the canonical wire form, normalised to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO 8601 / RFC 3339 timestamp that carries an
// explicit offset. A timestamp without one fails with ErrNaiveTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return time.Time{}, fmt.Errorf("%q: %w", s, ErrNaiveTimestamp)
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// sameInstant compares two timestamps at TimestampResolution.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(TimestampResolution).Equal(b.Truncate(TimestampResolution))
}
