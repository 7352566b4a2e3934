package ics

import (
	"fmt"
	"time"
)

const (
	floatingLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
	isoUTCLayout   = "2006-01-02T15:04:05.000Z"
)

// FormatFloatingLocal renders t from its own calendar fields with no zone
// suffix. Calendar clients read the value in their local zone.
func FormatFloatingLocal(t time.Time) string {
	return t.Format(floatingLayout)
}

// FormatUTC renders t converted to UTC with the trailing "Z".
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// FormatISOUTC renders t as an ISO-8601 UTC timestamp with milliseconds,
// the form the Outlook deep links accept.
func FormatISOUTC(t time.Time) string {
	return t.UTC().Format(isoUTCLayout)
}

// YahooDuration formats end-start as HHMM, using whole minutes rounded down.
// Negative spans render as "0000". Hours are at least two digits, so spans
// of 100 hours or more yield a longer value such as "10005".
func YahooDuration(start, end time.Time) string {
	minutes := int64(end.Sub(start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d%02d", minutes/60, minutes%60)
}
