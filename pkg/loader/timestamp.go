package loader

import (
	"strconv"
	"strings"
	"time"

	lverrors "github.com/logflow/logview/pkg/errors"
)

// Common timestamp layouts ordered by likelihood.
var commonLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// TimestampParser converts raw cell values into nanoseconds since epoch.
// With a layout set only that layout is tried.
type TimestampParser struct {
	layout string
}

// NewTimestampParser creates a parser. An empty layout auto-detects.
func NewTimestampParser(layout string) *TimestampParser {
	return &TimestampParser{layout: layout}
}

// Parse returns the timestamp in nanoseconds since Unix epoch, UTC.
func (p *TimestampParser) Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, lverrors.New(lverrors.CodeInvalidTimestamp, "empty timestamp")
	}

	if p.layout != "" {
		t, err := time.Parse(p.layout, s)
		if err != nil {
			// typed columns arrive already rendered as RFC3339
			if t, rerr := time.Parse(time.RFC3339Nano, s); rerr == nil {
				return t.UnixNano(), nil
			}
			return 0, lverrors.Wrap(err, lverrors.CodeInvalidTimestamp, "timestamp does not match layout").
				WithContext("value", s).
				WithContext("layout", p.layout)
		}
		return t.UnixNano(), nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return fromExcelSerial(serial), nil
	}

	for _, layout := range commonLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixNano(), nil
		}
	}
	return 0, lverrors.New(lverrors.CodeInvalidTimestamp, "unrecognized timestamp format").
		WithContext("value", s)
}

// fromExcelSerial converts a spreadsheet serial date (days since
// 1899-12-30, fraction = time of day).
func fromExcelSerial(serial float64) int64 {
	days := int64(serial)
	fraction := serial - float64(days)
	t := excelEpoch.AddDate(0, 0, int(days))
	if fraction > 0 {
		t = t.Add(time.Duration(fraction * 24 * float64(time.Hour)))
	}
	return t.UnixNano()
}
