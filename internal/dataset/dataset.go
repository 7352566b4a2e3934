package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	appLog "workshopcal/internal/log"
	"workshopcal/internal/model"
)

// ErrNoWorkshops is returned when a dataset decodes but holds no usable
// workshop. Publishing from it would empty every calendar.
var ErrNoWorkshops = errors.New("dataset contains no workshops")

// timestampLayouts are tried in order. Layouts without an offset are read
// in the loader's location.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type rawWorkshop struct {
	model.Workshop
	// Absent means active.
	IsActive *bool `json:"is_active"`
}

type rawOffering struct {
	ID              string `json:"id"`
	WorkshopID      string `json:"workshop_id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Location        string `json:"location"`
	Capacity        int    `json:"capacity"`
	RegistrationURL string `json:"registration_url"`
	Quarter         string `json:"quarter"`
	Year            int    `json:"year"`
}

type rawDataset struct {
	Workshops   []rawWorkshop  `json:"workshops"`
	Offerings   []rawOffering  `json:"offerings"`
	Formats     []model.Lookup `json:"formats"`
	Instructors []model.Lookup `json:"instructors"`
	Areas       []model.Lookup `json:"areas"`
	Audiences   []model.Lookup `json:"audiences"`
	Departments []model.Lookup `json:"departments"`
	Series      []model.Lookup `json:"series"`
}

// Report lists records dropped during validation.
type Report struct {
	RejectedWorkshops []string
	RejectedOfferings []string
}

// Rejected is the total number of dropped records.
func (r Report) Rejected() int {
	return len(r.RejectedWorkshops) + len(r.RejectedOfferings)
}

// Options configures a Loader.
type Options struct {
	// Source is a file path or an http(s) URL.
	Source   string
	CacheDir string
	// Location interprets zone-less timestamps; time.Local when nil.
	Location *time.Location
	Client   HTTPDoer
}

// Loader reads and validates the catalogue dataset.
type Loader struct {
	opts     Options
	fetcher  *Fetcher
	validate *validator.Validate
}

// NewLoader returns a Loader for opts.Source.
func NewLoader(opts Options) *Loader {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	l := &Loader{opts: opts, validate: validator.New()}
	if isRemote(opts.Source) {
		l.fetcher = NewFetcher(opts.CacheDir, opts.Client)
	}
	return l
}

// Load reads the source and builds the dataset.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, Report, error) {
	if l.opts.Source == "" {
		return nil, Report{}, errors.New("dataset source is empty")
	}

	var body []byte
	if l.fetcher != nil {
		res, err := l.fetcher.Fetch(ctx, l.opts.Source)
		if err != nil {
			return nil, Report{}, err
		}
		body = res.Body
	} else {
		data, err := os.ReadFile(l.opts.Source)
		if err != nil {
			return nil, Report{}, fmt.Errorf("read dataset: %w", err)
		}
		body = data
	}

	ds, report, err := l.Parse(body)
	if err != nil {
		return nil, report, err
	}
	appLog.Info("dataset loaded",
		"workshops", len(ds.Workshops),
		"offerings", ds.OfferingCount(),
		"rejected", report.Rejected(),
	)
	return ds, report, nil
}

// Parse decodes and validates a dataset document. Invalid workshops and
// offerings are dropped and listed in the report; the rest is kept.
func (l *Loader) Parse(body []byte) (*model.Dataset, Report, error) {
	var (
		raw    rawDataset
		report Report
	)
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, report, fmt.Errorf("decode dataset: %w", err)
	}

	workshops := make([]model.Workshop, 0, len(raw.Workshops))
	known := make(map[string]struct{}, len(raw.Workshops))
	for _, rw := range raw.Workshops {
		w := rw.Workshop
		w.IsActive = rw.IsActive == nil || *rw.IsActive
		if err := l.validate.Struct(w); err != nil {
			report.RejectedWorkshops = append(report.RejectedWorkshops, fmt.Sprintf("%s: %v", w.ID, err))
			appLog.Warn("dataset: workshop rejected", "id", w.ID, "reason", err)
			continue
		}
		if _, dup := known[w.ID]; dup {
			report.RejectedWorkshops = append(report.RejectedWorkshops, w.ID+": duplicate id")
			appLog.Warn("dataset: duplicate workshop id", "id", w.ID)
			continue
		}
		known[w.ID] = struct{}{}
		workshops = append(workshops, w)
	}
	if len(workshops) == 0 {
		return nil, report, ErrNoWorkshops
	}

	offerings := make([]model.Offering, 0, len(raw.Offerings))
	seen := make(map[string]struct{}, len(raw.Offerings))
	for _, ro := range raw.Offerings {
		o, err := l.offering(ro)
		if err == nil {
			if _, ok := known[o.WorkshopID]; !ok {
				err = fmt.Errorf("unknown workshop %q", o.WorkshopID)
			} else if _, dup := seen[o.ID]; dup {
				err = errors.New("duplicate id")
			}
		}
		if err != nil {
			report.RejectedOfferings = append(report.RejectedOfferings, fmt.Sprintf("%s: %v", ro.ID, err))
			appLog.Warn("dataset: offering rejected", "id", ro.ID, "reason", err)
			continue
		}
		seen[o.ID] = struct{}{}
		offerings = append(offerings, o)
	}

	lookups := model.NewLookups(map[model.LookupKind][]model.Lookup{
		model.KindFormat:     raw.Formats,
		model.KindInstructor: raw.Instructors,
		model.KindArea:       raw.Areas,
		model.KindAudience:   raw.Audiences,
		model.KindDepartment: raw.Departments,
		model.KindSeries:     raw.Series,
	})
	return model.NewDataset(workshops, offerings, lookups), report, nil
}

func (l *Loader) offering(ro rawOffering) (model.Offering, error) {
	start, err := ParseTimestamp(ro.Start, l.opts.Location)
	if err != nil {
		return model.Offering{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTimestamp(ro.End, l.opts.Location)
	if err != nil {
		return model.Offering{}, fmt.Errorf("end: %w", err)
	}
	o := model.Offering{
		ID:              ro.ID,
		WorkshopID:      ro.WorkshopID,
		Start:           start,
		End:             end,
		Location:        ro.Location,
		Capacity:        ro.Capacity,
		RegistrationURL: strings.TrimSpace(ro.RegistrationURL),
		Quarter:         ro.Quarter,
		Year:            ro.Year,
	}
	if err := l.validate.Struct(o); err != nil {
		return model.Offering{}, err
	}
	return o, nil
}

// ParseTimestamp accepts RFC 3339 or a zone-less local date-time. The
// result is expressed in loc either way.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
