package parsers

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// TimestampLayout is the layout producers are expected to use for the timestamp header.
const TimestampLayout = "2006-01-02T15:04:05.000Z0700"

// minEpochMillisDigits is the length of epoch milliseconds from 2001-09-09 onwards.
const minEpochMillisDigits = 13

// ParseTimestamp parses the producer supplied timestamp of a message and returns it in UTC.
// Besides RFC 3339 and TimestampLayout it accepts epoch milliseconds (10 digits or more) and anything
// dateparse understands, so compact dates such as 20110102 stay dates.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, xerrors.New("timestamp is empty")
	}
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if len(raw) >= minEpochMillisDigits && strings.IndexFunc(raw, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, xerrors.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}
