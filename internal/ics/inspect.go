package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// InspectedEvent is the read-back view of one VEVENT.
type InspectedEvent struct {
	UID      string
	Summary  string
	Location string
	URL      string
	Start    time.Time
	End      time.Time
	Alarms   []string // TRIGGER values in document order
}

// Inspection is the read-back view of a rendered calendar.
type Inspection struct {
	Name   string
	Method string
	Events []InspectedEvent
}

// Inspect parses body with golang-ical. Floating times are placed in loc
// (time.Local when nil).
func Inspect(body []byte, loc *time.Location) (Inspection, error) {
	var out Inspection
	if len(body) == 0 {
		return out, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("parse calendar: %w", err)
	}

	for _, p := range cal.CalendarProperties {
		switch p.IANAToken {
		case string(ical.PropertyXWRCalName):
			out.Name = p.Value
		case string(ical.PropertyMethod):
			out.Method = p.Value
		}
	}

	for _, ve := range cal.Events() {
		ev := InspectedEvent{
			UID:      propValue(ve, ical.ComponentPropertyUniqueId),
			Summary:  propValue(ve, ical.ComponentPropertySummary),
			Location: propValue(ve, ical.ComponentPropertyLocation),
			URL:      propValue(ve, ical.ComponentPropertyUrl),
		}
		if ev.Start, err = parseICSTime(propValue(ve, ical.ComponentPropertyDtStart), loc); err != nil {
			return out, fmt.Errorf("event %q DTSTART: %w", ev.UID, err)
		}
		if ev.End, err = parseICSTime(propValue(ve, ical.ComponentPropertyDtEnd), loc); err != nil {
			return out, fmt.Errorf("event %q DTEND: %w", ev.UID, err)
		}
		for _, sub := range ve.Components {
			if a, ok := sub.(*ical.VAlarm); ok {
				if p := a.GetProperty(ical.ComponentPropertyTrigger); p != nil {
					ev.Alarms = append(ev.Alarms, p.Value)
				}
			}
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

// Verify checks the invariants every published document must hold: each
// event has a UID unique within the document and both reminder alarms.
func Verify(body []byte) error {
	in, err := Inspect(body, time.UTC)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(in.Events))
	for i, ev := range in.Events {
		if ev.UID == "" {
			return fmt.Errorf("event %d: missing UID", i)
		}
		if _, dup := seen[ev.UID]; dup {
			return fmt.Errorf("event %d: duplicate UID %q", i, ev.UID)
		}
		seen[ev.UID] = struct{}{}
		if len(ev.Alarms) != 2 || ev.Alarms[0] != "-PT24H" || ev.Alarms[1] != "-PT1H" {
			return fmt.Errorf("event %q: unexpected alarms %v", ev.UID, ev.Alarms)
		}
	}
	return nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// parseICSTime parses a basic DATE / DATE-TIME value.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcLayout, v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(floatingLayout, v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
