package model

import (
	"testing"
	"time"
)

func TestLookupsResolution(t *testing.T) {
	l := NewLookups(map[LookupKind][]Lookup{
		KindFormat:     {{ID: "fmt-online", Label: "Online"}},
		KindInstructor: {{ID: "i1", Name: "Ada"}, {ID: "i2", Name: "Grace"}, {ID: "i1", Name: "Dup"}},
	})

	if got := l.Name(KindFormat, "fmt-online"); got != "Online" {
		t.Fatalf("format name = %q", got)
	}
	if got := l.Name(KindFormat, "missing"); got != "" {
		t.Fatalf("missing format should resolve to empty, got %q", got)
	}
	if got := l.Label(KindArea, "nope"); got != UnknownLabel {
		t.Fatalf("label placeholder = %q", got)
	}
	names := l.Names(KindInstructor, []string{"i2", "ghost", "i1"})
	if len(names) != 2 || names[0] != "Grace" || names[1] != "Ada" {
		t.Fatalf("unexpected names: %v", names)
	}
	if len(l.All(KindInstructor)) != 2 {
		t.Fatalf("duplicate id should be ignored: %+v", l.All(KindInstructor))
	}

	var zero *Lookups
	if zero.Name(KindFormat, "x") != "" || zero.All(KindFormat) != nil {
		t.Fatal("nil lookups must resolve nothing")
	}
}

func TestDatasetOfferingsSorted(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	ds := NewDataset(
		[]Workshop{{ID: "w1", Title: "A"}},
		[]Offering{
			{ID: "o2", WorkshopID: "w1", Start: base.Add(48 * time.Hour), End: base.Add(49 * time.Hour)},
			{ID: "o1", WorkshopID: "w1", Start: base, End: base.Add(time.Hour)},
			{ID: "o3", WorkshopID: "orphan", Start: base, End: base.Add(time.Hour)},
		},
		nil,
	)

	got := ds.OfferingsFor("w1")
	if len(got) != 2 || got[0].ID != "o1" || got[1].ID != "o2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if _, ok := ds.Offering("o3"); !ok {
		t.Fatal("orphan offering should still be addressable by id")
	}
	if _, ok := ds.Workshop("w1"); !ok {
		t.Fatal("workshop lookup failed")
	}
	if ds.OfferingCount() != 3 {
		t.Fatalf("offering count = %d", ds.OfferingCount())
	}
	if d := got[0].Duration(); d != time.Hour {
		t.Fatalf("duration = %v", d)
	}
}
