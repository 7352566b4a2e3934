package ics

import (
	"net/url"
	"strings"
	"time"

	"workshopcal/internal/model"
)

const (
	googleBase    = "https://calendar.google.com/calendar/render"
	outlookBase   = "https://outlook.live.com/calendar/0/deeplink/compose"
	office365Base = "https://outlook.office.com/calendar/0/deeplink/compose"
	yahooBase     = "https://calendar.yahoo.com/"
)

// Links holds the per-provider "add to calendar" targets for one event.
type Links struct {
	Google    string `json:"google"`
	Outlook   string `json:"outlook"`
	Office365 string `json:"office365"`
	Yahoo     string `json:"yahoo"`
	// ICS is a complete single-event calendar document (Apple and others).
	ICS string `json:"ics"`
}

// query keeps parameters in insertion order; url.Values would sort them.
type query []Property

func (q query) set(k, v string) query {
	return append(q, Property{Name: k, Value: v})
}

func (q query) encode() string {
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(queryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(queryEscape(p.Value))
	}
	return b.String()
}

// queryEscape is url.QueryEscape with spaces as %20. Outlook shows a
// literal "+" for form-encoded spaces.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// GoogleURL builds a Google Calendar event template link.
func GoogleURL(rec model.EventRecord) string {
	details := rec.Description
	if rec.URL != "" {
		details += "\n\nMore info: " + rec.URL
	}
	q := query{}.
		set("action", "TEMPLATE").
		set("text", rec.Title).
		set("details", details).
		set("location", rec.Location).
		set("dates", FormatUTC(rec.Start)+"/"+FormatUTC(rec.End))
	return googleBase + "?" + q.encode()
}

func outlookQuery(rec model.EventRecord) string {
	return query{}.
		set("path", "/calendar/action/compose").
		set("rru", "addevent").
		set("subject", rec.Title).
		set("body", rec.Description).
		set("location", rec.Location).
		set("startdt", FormatISOUTC(rec.Start)).
		set("enddt", FormatISOUTC(rec.End)).
		encode()
}

// OutlookURL builds an Outlook.com compose deep link.
func OutlookURL(rec model.EventRecord) string {
	return outlookBase + "?" + outlookQuery(rec)
}

// Office365URL builds the Office 365 equivalent of OutlookURL.
func Office365URL(rec model.EventRecord) string {
	return office365Base + "?" + outlookQuery(rec)
}

// YahooURL builds a Yahoo Calendar link. Duration is HHMM.
func YahooURL(rec model.EventRecord) string {
	q := query{}.
		set("v", "60").
		set("title", rec.Title).
		set("desc", rec.Description).
		set("in_loc", rec.Location).
		set("st", FormatUTC(rec.Start)).
		set("dur", YahooDuration(rec.Start, rec.End))
	return yahooBase + "?" + q.encode()
}

// Links computes all five targets for rec. The ICS document carries the
// record's own UID.
func (g *Generator) Links(rec model.EventRecord, stamp time.Time) Links {
	return Links{
		Google:    GoogleURL(rec),
		Outlook:   OutlookURL(rec),
		Office365: Office365URL(rec),
		Yahoo:     YahooURL(rec),
		ICS:       g.RenderDocument([]model.EventRecord{rec}, stamp),
	}
}
