// Package filter selects and orders the workshops shown for a set of
// facet choices and a free-text query.
package filter

import (
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"workshopcal/internal/model"
)

// Sort orders.
const (
	SortDataset = ""
	SortTitle   = "title"
	SortDate    = "date"
)

// Criteria is one filter set. Values within a facet are OR-ed, facets are
// AND-ed. Empty facets do not restrict.
type Criteria struct {
	Areas       []string `yaml:"areas,omitempty" json:"areas,omitempty"`
	Audiences   []string `yaml:"audiences,omitempty" json:"audiences,omitempty"`
	Formats     []string `yaml:"formats,omitempty" json:"formats,omitempty"`
	Departments []string `yaml:"departments,omitempty" json:"departments,omitempty"`
	Series      []string `yaml:"series,omitempty" json:"series,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Query       string   `yaml:"query,omitempty" json:"query,omitempty"`

	IncludeInactive bool `yaml:"include_inactive,omitempty" json:"include_inactive,omitempty"`
	// UpcomingAfter, when set, keeps workshops with an offering starting at
	// or after it.
	UpcomingAfter time.Time `yaml:"-" json:"-"`
	Sort          string    `yaml:"sort,omitempty" json:"sort,omitempty"`
}

// FromQuery reads criteria from URL query parameters (repeatable area,
// audience, format, department, series, tag; plus q and sort).
func FromQuery(v url.Values) Criteria {
	return Criteria{
		Areas:       splitValues(v["area"]),
		Audiences:   splitValues(v["audience"]),
		Formats:     splitValues(v["format"]),
		Departments: splitValues(v["department"]),
		Series:      splitValues(v["series"]),
		Tags:        splitValues(v["tag"]),
		Query:       strings.TrimSpace(v.Get("q")),
		Sort:        v.Get("sort"),
	}
}

// splitValues flattens "a,b" and repeated parameters into one list.
func splitValues(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Select returns the workshops of ds that match c, in dataset order unless
// c.Sort asks otherwise. ds.Workshops is not modified.
func Select(ds *model.Dataset, c Criteria) []model.Workshop {
	// A Caser is stateful; one per call.
	fold := cases.Fold()
	terms := strings.Fields(fold.String(c.Query))

	out := make([]model.Workshop, 0, len(ds.Workshops))
	for _, w := range ds.Workshops {
		if !w.IsActive && !c.IncludeInactive {
			continue
		}
		if !anyOf(c.Areas, w.AreaIDs) ||
			!anyOf(c.Audiences, w.AudienceIDs) ||
			!anyOf(c.Departments, w.DepartmentIDs) ||
			!anyOf(c.Tags, w.Tags) ||
			!oneOf(c.Formats, w.FormatID) ||
			!oneOf(c.Series, w.SeriesID) {
			continue
		}
		if len(terms) > 0 && !matches(ds, w, terms, fold) {
			continue
		}
		if !c.UpcomingAfter.IsZero() && nextStart(ds, w, c.UpcomingAfter).IsZero() {
			continue
		}
		out = append(out, w)
	}

	switch c.Sort {
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return fold.String(out[i].Title) < fold.String(out[j].Title)
		})
	case SortDate:
		after := c.UpcomingAfter
		sort.SliceStable(out, func(i, j int) bool {
			a, b := nextStart(ds, out[i], after), nextStart(ds, out[j], after)
			// Workshops with nothing scheduled go last.
			if a.IsZero() || b.IsZero() {
				return !a.IsZero() && b.IsZero()
			}
			return a.Before(b)
		})
	}
	return out
}

func anyOf(want, have []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}

func oneOf(want []string, have string) bool {
	return len(want) == 0 || slices.Contains(want, have)
}

// matches reports whether every term occurs in the workshop's searchable
// text: title, summary, description, tags and instructor names.
func matches(ds *model.Dataset, w model.Workshop, terms []string, fold cases.Caser) bool {
	fields := []string{w.Title, w.Summary, w.Description}
	fields = append(fields, w.Tags...)
	fields = append(fields, ds.Lookups.Names(model.KindInstructor, w.InstructorIDs)...)
	haystack := fold.String(strings.Join(fields, "\n"))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// nextStart is the first offering start at or after after, or zero.
func nextStart(ds *model.Dataset, w model.Workshop, after time.Time) time.Time {
	for _, o := range ds.OfferingsFor(w.ID) {
		if after.IsZero() || !o.Start.Before(after) {
			return o.Start
		}
	}
	return time.Time{}
}
