package models

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholder is shown for absent optional values.
const Placeholder = "—"

// Unknown is shown for timestamps that cannot be parsed.
const Unknown = "unknown"

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCents renders integer cents as US currency, e.g. 123456 -> "$1,234.56".
// The conversion never goes through a float.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
	}
	// Avoid overflow on math.MinInt64 by working on the unsigned magnitude.
	mag := uint64(cents)
	if cents < 0 {
		mag = uint64(-(cents + 1)) + 1
	}
	dollars, rem := mag/100, mag%100
	return sign + "$" + amountPrinter.Sprintf("%d", dollars) + "." + twoDigits(rem)
}

func twoDigits(n uint64) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// FormatOptionalCents renders nil as the placeholder.
func FormatOptionalCents(cents *int64) string {
	if cents == nil {
		return Placeholder
	}
	return FormatCents(*cents)
}

// FormatPercent renders a [0,1] score as a whole percentage, e.g. 0.82 -> "82%".
func FormatPercent(score float64) string {
	return strconv.FormatInt(int64(math.Round(score*100)), 10) + "%"
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the date-time formats the API emits.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders a timestamp as local date and time. Empty input
// gives the placeholder; unparsable input gives "unknown".
func FormatTimestamp(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	t, ok := ParseTimestamp(s)
	if !ok {
		return Unknown
	}
	return t.Local().Format("2006-01-02 · 15:04")
}

// Humanize replaces underscores with spaces: "unknown_code_xyz" -> "unknown code xyz".
func Humanize(code string) string {
	return strings.ReplaceAll(code, "_", " ")
}

// ValueOr dereferences s, returning the placeholder for nil or empty values.
func ValueOr(s *string) string {
	if s == nil || *s == "" {
		return Placeholder
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
