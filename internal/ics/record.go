package ics

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"workshopcal/internal/model"
)

const (
	// DefaultUIDDomain is appended to offering ids to form event UIDs.
	DefaultUIDDomain = "workshops.invalid"

	// DefaultLocation replaces an empty offering location.
	DefaultLocation = "TBA"

	metadataSeparator = "\n\n---\n"
)

// uidNamespace seeds name-based UUIDs for offerings that carry no id.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:workshopcal:offering"))

// Builder turns (workshop, offering) pairs into EventRecords.
type Builder struct {
	Lookups   *model.Lookups
	UIDDomain string
}

// NewBuilder returns a Builder resolving names through lookups.
func NewBuilder(lookups *model.Lookups, uidDomain string) *Builder {
	if uidDomain == "" {
		uidDomain = DefaultUIDDomain
	}
	return &Builder{Lookups: lookups, UIDDomain: uidDomain}
}

// UID derives a stable event UID from the offering identity. Offerings
// without an id get a name-based UUID over workshop id and start instant.
func (b *Builder) UID(o model.Offering) string {
	domain := b.UIDDomain
	if domain == "" {
		domain = DefaultUIDDomain
	}
	if o.ID != "" {
		return o.ID + "@" + domain
	}
	name := o.WorkshopID + "|" + FormatUTC(o.Start)
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@" + domain
}

// Description composes the event body: the workshop text followed by a
// metadata appendix. Lines whose data is missing or unresolvable are left out.
func (b *Builder) Description(w model.Workshop, o model.Offering) string {
	base := w.Description
	if base == "" {
		base = w.Summary
	}

	lines := make([]string, 0, 6)
	if f := b.Lookups.Name(model.KindFormat, w.FormatID); f != "" {
		lines = append(lines, "Format: "+f)
	}
	if names := b.Lookups.Names(model.KindInstructor, w.InstructorIDs); len(names) > 0 {
		lines = append(lines, "Instructor(s): "+strings.Join(names, ", "))
	}
	if areas := b.Lookups.Names(model.KindArea, w.AreaIDs); len(areas) > 0 {
		lines = append(lines, "Research Area(s): "+strings.Join(areas, ", "))
	}
	if o.Quarter != "" {
		q := o.Quarter
		if o.Year != 0 {
			q = fmt.Sprintf("%s %d", o.Quarter, o.Year)
		}
		lines = append(lines, "Quarter: "+q)
	}
	if o.RegistrationURL != "" {
		lines = append(lines, "", "Register: "+o.RegistrationURL)
	}

	return base + metadataSeparator + strings.Join(lines, "\n")
}

// FromOffering builds the EventRecord for one offering of w.
func (b *Builder) FromOffering(w model.Workshop, o model.Offering) model.EventRecord {
	loc := o.Location
	if strings.TrimSpace(loc) == "" {
		loc = DefaultLocation
	}
	return model.EventRecord{
		UID:         b.UID(o),
		Title:       w.Title,
		Description: b.Description(w, o),
		Location:    loc,
		Start:       o.Start,
		End:         o.End,
		URL:         o.RegistrationURL,
	}
}

// Records expands workshops (in the given order) into one record per
// offering. Workshops without offerings contribute nothing.
func (b *Builder) Records(ds *model.Dataset, workshops []model.Workshop) []model.EventRecord {
	out := make([]model.EventRecord, 0, len(workshops))
	for _, w := range workshops {
		for _, o := range ds.OfferingsFor(w.ID) {
			out = append(out, b.FromOffering(w, o))
		}
	}
	return out
}

// BuildDescription is Builder.Description with default settings.
func BuildDescription(w model.Workshop, o model.Offering, lookups *model.Lookups) string {
	return NewBuilder(lookups, "").Description(w, o)
}

// FromOffering is Builder.FromOffering with default settings.
func FromOffering(w model.Workshop, o model.Offering, lookups *model.Lookups) model.EventRecord {
	return NewBuilder(lookups, "").FromOffering(w, o)
}
