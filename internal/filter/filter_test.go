package filter

import (
	"net/url"
	"testing"
	"time"

	"workshopcal/internal/model"
)

func fixture() *model.Dataset {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	workshops := []model.Workshop{
		{ID: "w1", Title: "Zebra Stats", FormatID: "online", AreaIDs: []string{"stats"}, AudienceIDs: []string{"grad"}, IsActive: true, Tags: []string{"R"}},
		{ID: "w2", Title: "apple Python", Summary: "Intro to Python", FormatID: "in-person", AreaIDs: []string{"cs", "stats"}, InstructorIDs: []string{"i1"}, IsActive: true},
		{ID: "w3", Title: "Hidden", FormatID: "online", IsActive: false},
		{ID: "w4", Title: "Machine Learning", FormatID: "online", DepartmentIDs: []string{"eng"}, SeriesID: "s1", IsActive: true},
	}
	offerings := []model.Offering{
		{ID: "o1", WorkshopID: "w1", Start: base.AddDate(0, 0, 14), End: base.AddDate(0, 0, 14).Add(time.Hour)},
		{ID: "o2", WorkshopID: "w2", Start: base, End: base.Add(time.Hour)},
		{ID: "o3", WorkshopID: "w2", Start: base.AddDate(0, 0, 30), End: base.AddDate(0, 0, 30).Add(time.Hour)},
	}
	lookups := model.NewLookups(map[model.LookupKind][]model.Lookup{
		model.KindInstructor: {{ID: "i1", Name: "Grace Hopper"}},
	})
	return model.NewDataset(workshops, offerings, lookups)
}

func ids(ws []model.Workshop) string {
	out := ""
	for i, w := range ws {
		if i > 0 {
			out += ","
		}
		out += w.ID
	}
	return out
}

func TestSelect(t *testing.T) {
	ds := fixture()
	cases := []struct {
		name string
		c    Criteria
		want string
	}{
		{"all active", Criteria{}, "w1,w2,w4"},
		{"include inactive", Criteria{IncludeInactive: true}, "w1,w2,w3,w4"},
		{"area or", Criteria{Areas: []string{"stats", "cs"}}, "w1,w2"},
		{"facets and", Criteria{Areas: []string{"stats"}, Formats: []string{"online"}}, "w1"},
		{"audience", Criteria{Audiences: []string{"grad"}}, "w1"},
		{"department", Criteria{Departments: []string{"eng"}}, "w4"},
		{"series", Criteria{Series: []string{"s1"}}, "w4"},
		{"tag", Criteria{Tags: []string{"R"}}, "w1"},
		{"query summary", Criteria{Query: "python"}, "w2"},
		{"query instructor", Criteria{Query: "HOPPER"}, "w2"},
		{"query all terms", Criteria{Query: "machine learning"}, "w4"},
		{"query miss", Criteria{Query: "machine python"}, ""},
		{"upcoming", Criteria{UpcomingAfter: time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC)}, "w2"},
		{"sort title", Criteria{Sort: SortTitle}, "w2,w4,w1"},
		{"sort date", Criteria{Sort: SortDate}, "w2,w1,w4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(Select(ds, tc.c)); got != tc.want {
				t.Fatalf("Select() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSelectSortDateAfter(t *testing.T) {
	ds := fixture()
	// After Mar 11 w2's next offering is Apr 9, w1's is Mar 24.
	c := Criteria{Sort: SortDate, UpcomingAfter: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)}
	if got := ids(Select(ds, c)); got != "w1,w2" {
		t.Fatalf("Select() = %q", got)
	}
	if ids(ds.Workshops) != "w1,w2,w3,w4" {
		t.Fatal("dataset order must not change")
	}
}

func TestFromQuery(t *testing.T) {
	v, _ := url.ParseQuery("area=stats,cs&area=bio&format=online&q=+python+&sort=date&tag=")
	c := FromQuery(v)
	if len(c.Areas) != 3 || c.Areas[2] != "bio" {
		t.Fatalf("areas = %v", c.Areas)
	}
	if len(c.Formats) != 1 || c.Query != "python" || c.Sort != SortDate {
		t.Fatalf("unexpected criteria: %+v", c)
	}
	if c.Tags != nil {
		t.Fatalf("empty tag should be dropped: %v", c.Tags)
	}
}
