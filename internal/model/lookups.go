package model

import "sort"

// LookupKind names one of the lookup collections.
type LookupKind string

const (
	KindFormat     LookupKind = "format"
	KindInstructor LookupKind = "instructor"
	KindArea       LookupKind = "area"
	KindAudience   LookupKind = "audience"
	KindDepartment LookupKind = "department"
	KindSeries     LookupKind = "series"
)

// UnknownLabel is shown when a referenced id cannot be resolved.
const UnknownLabel = "Unknown"

// Lookups holds every lookup collection indexed by id. The zero value is
// usable and resolves nothing.
type Lookups struct {
	ordered map[LookupKind][]Lookup
	byID    map[LookupKind]map[string]Lookup
}

// NewLookups indexes the given collections. Later duplicates of an id are
// ignored.
func NewLookups(collections map[LookupKind][]Lookup) *Lookups {
	l := &Lookups{
		ordered: make(map[LookupKind][]Lookup, len(collections)),
		byID:    make(map[LookupKind]map[string]Lookup, len(collections)),
	}
	for kind, items := range collections {
		idx := make(map[string]Lookup, len(items))
		list := make([]Lookup, 0, len(items))
		for _, it := range items {
			if _, dup := idx[it.ID]; dup {
				continue
			}
			idx[it.ID] = it
			list = append(list, it)
		}
		l.byID[kind] = idx
		l.ordered[kind] = list
	}
	return l
}

// Get resolves one id.
func (l *Lookups) Get(kind LookupKind, id string) (Lookup, bool) {
	if l == nil || id == "" {
		return Lookup{}, false
	}
	it, ok := l.byID[kind][id]
	return it, ok
}

// Name returns the display name of id, or "" if it does not resolve.
func (l *Lookups) Name(kind LookupKind, id string) string {
	it, ok := l.Get(kind, id)
	if !ok {
		return ""
	}
	return it.DisplayName()
}

// Label is like Name but returns UnknownLabel for misses, for UI display.
func (l *Lookups) Label(kind LookupKind, id string) string {
	if name := l.Name(kind, id); name != "" {
		return name
	}
	return UnknownLabel
}

// Names resolves ids in order, silently dropping misses and empty names.
func (l *Lookups) Names(kind LookupKind, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name := l.Name(kind, id); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// All returns the collection in dataset order.
func (l *Lookups) All(kind LookupKind) []Lookup {
	if l == nil {
		return nil
	}
	return l.ordered[kind]
}

// Dataset is the whole catalogue after loading.
type Dataset struct {
	Workshops []Workshop
	Lookups   *Lookups

	offerings  map[string][]Offering
	offeringID map[string]Offering
	workshopID map[string]int
}

// NewDataset indexes offerings per workshop, sorted by start time.
// Offerings whose workshop is unknown are kept reachable by id only.
func NewDataset(workshops []Workshop, offerings []Offering, lookups *Lookups) *Dataset {
	if lookups == nil {
		lookups = NewLookups(nil)
	}
	ds := &Dataset{
		Workshops:  workshops,
		Lookups:    lookups,
		offerings:  make(map[string][]Offering),
		offeringID: make(map[string]Offering, len(offerings)),
		workshopID: make(map[string]int, len(workshops)),
	}
	for i, w := range workshops {
		if _, dup := ds.workshopID[w.ID]; !dup {
			ds.workshopID[w.ID] = i
		}
	}
	for _, o := range offerings {
		ds.offeringID[o.ID] = o
		ds.offerings[o.WorkshopID] = append(ds.offerings[o.WorkshopID], o)
	}
	for id := range ds.offerings {
		list := ds.offerings[id]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Start.Before(list[j].Start)
		})
	}
	return ds
}

// OfferingsFor returns a workshop's offerings in start order.
func (d *Dataset) OfferingsFor(workshopID string) []Offering {
	return d.offerings[workshopID]
}

// Workshop looks up a workshop by id.
func (d *Dataset) Workshop(id string) (Workshop, bool) {
	i, ok := d.workshopID[id]
	if !ok {
		return Workshop{}, false
	}
	return d.Workshops[i], true
}

// Offering looks up an offering by id.
func (d *Dataset) Offering(id string) (Offering, bool) {
	o, ok := d.offeringID[id]
	return o, ok
}

// OfferingCount is the number of indexed offerings.
func (d *Dataset) OfferingCount() int {
	return len(d.offeringID)
}
