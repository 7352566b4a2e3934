package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"workshopcal/internal/model"
)

const sample = `{
  "workshops": [
    {"id": "ws-1", "title": "Intro to Python", "summary": "Learn Python basics", "format_id": "fmt-online", "area_ids": ["a1"], "is_active": true},
    {"id": "ws-2", "title": "Old Workshop", "is_active": false},
    {"id": "ws-3", "title": "Defaults Active"},
    {"id": "", "title": "No id"}
  ],
  "offerings": [
    {"id": "off-2", "workshop_id": "ws-1", "start": "2025-03-17T10:00:00", "end": "2025-03-17T11:00:00"},
    {"id": "off-1", "workshop_id": "ws-1", "start": "2025-03-10T10:00:00", "end": "2025-03-10T11:00:00", "registration_url": "https://example.edu/reg", "quarter": "Spring", "year": 2025},
    {"id": "off-bad", "workshop_id": "ws-1", "start": "2025-03-10T12:00:00", "end": "2025-03-10T11:00:00"},
    {"id": "off-orphan", "workshop_id": "ws-404", "start": "2025-03-10T10:00:00", "end": "2025-03-10T11:00:00"},
    {"id": "off-1", "workshop_id": "ws-1", "start": "2025-04-10T10:00:00", "end": "2025-04-10T11:00:00"},
    {"id": "off-url", "workshop_id": "ws-1", "start": "2025-03-10T10:00:00", "end": "2025-03-10T11:00:00", "registration_url": "not a url"},
    {"id": "off-utc", "workshop_id": "ws-3", "start": "2025-03-10T18:00:00Z", "end": "2025-03-10T19:30:00Z"}
  ],
  "formats": [{"id": "fmt-online", "label": "Online"}],
  "areas": [{"id": "a1", "label": "Data Science", "icon": "chart"}]
}`

var pacific = time.FixedZone("PST", -8*60*60)

func TestParseValidatesAndIndexes(t *testing.T) {
	l := NewLoader(Options{Location: pacific})
	ds, report, err := l.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(ds.Workshops) != 3 {
		t.Fatalf("workshops = %+v", ds.Workshops)
	}
	if ds.Workshops[1].IsActive {
		t.Fatal("explicit is_active=false must be kept")
	}
	if !ds.Workshops[2].IsActive {
		t.Fatal("absent is_active should default to active")
	}
	if len(report.RejectedWorkshops) != 1 {
		t.Fatalf("rejected workshops = %v", report.RejectedWorkshops)
	}
	// end before start, unknown workshop, duplicate id, bad url
	if len(report.RejectedOfferings) != 4 {
		t.Fatalf("rejected offerings = %v", report.RejectedOfferings)
	}

	offs := ds.OfferingsFor("ws-1")
	if len(offs) != 2 || offs[0].ID != "off-1" || offs[1].ID != "off-2" {
		t.Fatalf("unexpected offerings: %+v", offs)
	}
	if offs[0].Quarter != "Spring" || offs[0].Year != 2025 {
		t.Fatalf("scheduling metadata lost: %+v", offs[0])
	}
	if h := offs[0].Start.Hour(); h != 10 {
		t.Fatalf("zone-less start should stay local, hour = %d", h)
	}

	utc, ok := ds.Offering("off-utc")
	if !ok {
		t.Fatal("missing off-utc")
	}
	if utc.Start.Hour() != 10 || utc.Start.Location() != pacific {
		t.Fatalf("RFC3339 start should be converted to loader zone: %v", utc.Start)
	}

	if got := ds.Lookups.Name(model.KindArea, "a1"); got != "Data Science" {
		t.Fatalf("area lookup = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	l := NewLoader(Options{})
	if _, _, err := l.Parse([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, _, err := l.Parse([]byte(`{"workshops": []}`)); !errors.Is(err, ErrNoWorkshops) {
		t.Fatalf("expected ErrNoWorkshops, got %v", err)
	}
}

func TestParseRejectsUnsafeOfferingIDs(t *testing.T) {
	body := `{
  "workshops": [{"id": "ws-1", "title": "Intro"}],
  "offerings": [
    {"id": "off-1\nSTATUS:CANCELLED", "workshop_id": "ws-1", "start": "2025-03-10T10:00", "end": "2025-03-10T11:00"},
    {"id": "off;2", "workshop_id": "ws-1", "start": "2025-03-10T10:00", "end": "2025-03-10T11:00"},
    {"id": "off,3", "workshop_id": "ws-1", "start": "2025-03-10T10:00", "end": "2025-03-10T11:00"},
    {"id": "off\\4", "workshop_id": "ws-1", "start": "2025-03-10T10:00", "end": "2025-03-10T11:00"},
    {"id": "off-5.a_b", "workshop_id": "ws-1", "start": "2025-03-10T10:00", "end": "2025-03-10T11:00"}
  ]
}`
	ds, report, err := NewLoader(Options{Location: pacific}).Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(report.RejectedOfferings) != 4 {
		t.Fatalf("rejected offerings = %v", report.RejectedOfferings)
	}
	if offs := ds.OfferingsFor("ws-1"); len(offs) != 1 || offs[0].ID != "off-5.a_b" {
		t.Fatalf("unexpected offerings: %+v", offs)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workshops.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	ds, _, err := NewLoader(Options{Source: path, Location: pacific}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.Workshops) != 3 {
		t.Fatalf("workshops = %d", len(ds.Workshops))
	}

	if _, _, err := NewLoader(Options{Source: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background()); err == nil {
		t.Fatal("expected read error")
	}
	if _, _, err := NewLoader(Options{}).Load(context.Background()); err == nil {
		t.Fatal("expected empty source error")
	}
}

func TestLoadFromHTTPUsesCache(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sample))
	}))

	cacheDir := t.TempDir()
	l := NewLoader(Options{Source: srv.URL + "/data/workshops.json?token=abc", CacheDir: cacheDir, Location: pacific})

	for i := 0; i < 2; i++ {
		ds, _, err := l.Load(context.Background())
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if len(ds.Workshops) != 3 {
			t.Fatalf("load %d: workshops = %d", i, len(ds.Workshops))
		}
	}
	if hits.Load() != 2 || notModified.Load() != 1 {
		t.Fatalf("hits=%d notModified=%d", hits.Load(), notModified.Load())
	}

	// Origin gone: the cached body is still served.
	srv.Close()
	if _, _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("expected cached fallback, got %v", err)
	}
}

func TestFetchStatusErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected status error")
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected empty url error")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-10T10:00:00", time.Date(2025, 3, 10, 10, 0, 0, 0, pacific)},
		{"2025-03-10T10:00", time.Date(2025, 3, 10, 10, 0, 0, 0, pacific)},
		{"2025-03-10 10:00:00", time.Date(2025, 3, 10, 10, 0, 0, 0, pacific)},
		{"2025-03-10T18:00:00Z", time.Date(2025, 3, 10, 10, 0, 0, 0, pacific)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in, pacific)
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseTimestamp("yesterday", pacific); err == nil {
		t.Fatal("expected error")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://example.com/path/data.json?token=abcd"); got != "https://example.com/...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
	if got := redactURL("no-scheme"); got != "dataset://...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
}
