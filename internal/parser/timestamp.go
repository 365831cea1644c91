package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the civil part of the log writer's format,
// e.g. "Mon 01 Jan 2024 10:00:00".
const TimestampLayout = "Mon 2 Jan 2006 15:04:05"

// ErrTimestampFormat is wrapped by every timestamp parse failure.
var ErrTimestampFormat = errors.New("timestamp does not match expected format")

// utcMarker anywhere in the raw text means the civil time was written in UTC.
const utcMarker = "UTC"

// ParseTimestamp parses a marker payload into an instant in loc.
//
// The payload is "<weekday> <day> <month> <year> <HH:MM:SS>" optionally followed by a
// single zone token. When the raw text contains "UTC" the civil time is read as UTC and
// converted to loc; otherwise it is read as civil time in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	fields := strings.Fields(raw)
	if len(fields) < 5 || len(fields) > 6 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, raw)
	}

	civil := strings.Join(fields[:5], " ")
	src := loc
	if strings.Contains(raw, utcMarker) {
		src = time.UTC
	}

	ts, err := time.ParseInLocation(TimestampLayout, civil, src)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimestampFormat, raw, err)
	}
	return ts.In(loc), nil
}
