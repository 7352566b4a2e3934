package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"workshopcal/internal/model"
)

const (
	DefaultProdID   = "-//Workshop Catalogue//Workshop Calendar 1.0//EN"
	DefaultCalName  = "Workshops"
	DefaultCalDesc  = "Upcoming workshop offerings"
	DefaultTimezone = "UTC"

	// MIMEType is the content type of rendered documents.
	MIMEType = "text/calendar; charset=utf-8"

	crlf = "\r\n"
)

// Property is one NAME:VALUE content line. Value is written as given, so
// TEXT values must already be escaped.
type Property struct {
	Name  string
	Value string
}

// Component is a BEGIN/END block with ordered properties followed by
// nested components.
type Component struct {
	Kind       ical.ComponentType
	Properties []Property
	Components []Component
}

func (c *Component) add(name ical.ComponentProperty, value string) {
	c.Properties = append(c.Properties, Property{Name: string(name), Value: value})
}

func (c *Component) addCal(name ical.Property, value string) {
	c.Properties = append(c.Properties, Property{Name: string(name), Value: value})
}

// Serialize appends the serialized component to b.
func (c Component) Serialize(b *strings.Builder) {
	b.WriteString("BEGIN:" + string(c.Kind) + crlf)
	for _, p := range c.Properties {
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(p.Value)
		b.WriteString(crlf)
	}
	for _, sub := range c.Components {
		sub.Serialize(b)
	}
	b.WriteString("END:" + string(c.Kind) + crlf)
}

// String serializes the component.
func (c Component) String() string {
	var b strings.Builder
	c.Serialize(&b)
	return b.String()
}

// Options configures the VCALENDAR header.
type Options struct {
	ProdID   string
	Name     string
	Desc     string
	Timezone string
}

// Generator renders EventRecords as iCalendar text. It holds no mutable
// state and is safe for concurrent use.
type Generator struct {
	opts Options
}

// NewGenerator fills unset header options with defaults.
func NewGenerator(opts Options) *Generator {
	if opts.ProdID == "" {
		opts.ProdID = DefaultProdID
	}
	if opts.Name == "" {
		opts.Name = DefaultCalName
	}
	if opts.Desc == "" {
		opts.Desc = DefaultCalDesc
	}
	if opts.Timezone == "" {
		opts.Timezone = DefaultTimezone
	}
	return &Generator{opts: opts}
}

// EventComponent lays out one VEVENT in its fixed property order.
func (g *Generator) EventComponent(rec model.EventRecord, uid string, stamp time.Time) Component {
	ev := Component{Kind: ical.ComponentVEvent}
	title := Escape(rec.Title)

	ev.add(ical.ComponentPropertyUniqueId, Escape(uid))
	ev.add(ical.ComponentPropertyDtstamp, FormatFloatingLocal(stamp))
	ev.add(ical.ComponentPropertyDtStart, FormatFloatingLocal(rec.Start))
	ev.add(ical.ComponentPropertyDtEnd, FormatFloatingLocal(rec.End))
	ev.add(ical.ComponentPropertySummary, title)
	ev.add(ical.ComponentPropertyDescription, Escape(rec.Description))
	ev.add(ical.ComponentPropertyLocation, Escape(rec.Location))
	if rec.URL != "" {
		ev.add(ical.ComponentPropertyUrl, rec.URL)
	}
	ev.add(ical.ComponentPropertyStatus, "CONFIRMED")
	ev.add(ical.ComponentPropertySequence, "0")

	ev.Components = []Component{
		alarm("-PT24H", "Reminder: "+title+" tomorrow"),
		alarm("-PT1H", "Reminder: "+title+" in 1 hour"),
	}
	return ev
}

func alarm(trigger, desc string) Component {
	a := Component{Kind: ical.ComponentVAlarm}
	a.add(ical.ComponentPropertyTrigger, trigger)
	a.add(ical.ComponentPropertyAction, "DISPLAY")
	a.add(ical.ComponentPropertyDescription, desc)
	return a
}

// CalendarComponent wraps records, in input order, in a VCALENDAR. Each
// record's UID is used as-is.
func (g *Generator) CalendarComponent(records []model.EventRecord, stamp time.Time) Component {
	cal := Component{Kind: ical.ComponentVCalendar}
	cal.addCal(ical.PropertyVersion, "2.0")
	cal.addCal(ical.PropertyProductId, g.opts.ProdID)
	cal.addCal(ical.PropertyCalscale, "GREGORIAN")
	cal.addCal(ical.PropertyMethod, string(ical.MethodPublish))
	cal.addCal(ical.PropertyXWRCalName, Escape(g.opts.Name))
	cal.addCal(ical.PropertyXWRTimezone, g.opts.Timezone)
	cal.addCal(ical.PropertyXWRCalDesc, Escape(g.opts.Desc))

	cal.Components = make([]Component, 0, len(records))
	for _, rec := range records {
		cal.Components = append(cal.Components, g.EventComponent(rec, rec.UID, stamp))
	}
	return cal
}

// RenderEvent renders a single VEVENT block.
func (g *Generator) RenderEvent(rec model.EventRecord, uid string, stamp time.Time) string {
	return g.EventComponent(rec, uid, stamp).String()
}

// RenderDocument renders a complete calendar. An empty slice yields a valid
// calendar with no events.
func (g *Generator) RenderDocument(records []model.EventRecord, stamp time.Time) string {
	return g.CalendarComponent(records, stamp).String()
}
