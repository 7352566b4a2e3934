// Package export writes the static calendar files: one for the whole
// catalogue, one per facet value and one per configured preset.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"workshopcal/internal/config"
	"workshopcal/internal/filter"
	"workshopcal/internal/ics"
	appLog "workshopcal/internal/log"
	"workshopcal/internal/model"
)

// ManifestName is the index written next to the calendar files.
const ManifestName = "index.json"

// Target is one file to generate.
type Target struct {
	Filename string
	Title    string
	Criteria filter.Criteria
}

// facets are exported in this order; the prefix is part of the filename.
var facets = []struct {
	kind  model.LookupKind
	apply func(*filter.Criteria, string)
}{
	{model.KindArea, func(c *filter.Criteria, id string) { c.Areas = []string{id} }},
	{model.KindAudience, func(c *filter.Criteria, id string) { c.Audiences = []string{id} }},
	{model.KindFormat, func(c *filter.Criteria, id string) { c.Formats = []string{id} }},
	{model.KindDepartment, func(c *filter.Criteria, id string) { c.Departments = []string{id} }},
}

// Filename derives the file name for a facet value, e.g. "area-ml.ics".
func Filename(kind model.LookupKind, id string) string {
	return string(kind) + "-" + Slugify(id) + ".ics"
}

// Targets lists every file for ds in a fixed order: all.ics, then each
// area, audience, format and department in dataset order, then presets.
// A name already handed out gets the lowest free "-N" suffix, in that
// same order.
func Targets(ds *model.Dataset, presets []config.Preset) []Target {
	targets := []Target{{Filename: "all.ics", Title: "All Workshops"}}
	for _, f := range facets {
		for _, l := range ds.Lookups.All(f.kind) {
			var c filter.Criteria
			f.apply(&c, l.ID)
			targets = append(targets, Target{
				Filename: Filename(f.kind, l.ID),
				Title:    l.DisplayName(),
				Criteria: c,
			})
		}
	}
	for _, p := range presets {
		targets = append(targets, Target{
			Filename: Slugify(p.Name) + ".ics",
			Title:    p.Name,
			Criteria: p.Criteria,
		})
	}

	taken := make(map[string]struct{}, len(targets))
	for i := range targets {
		name := targets[i].Filename
		if _, dup := taken[name]; dup {
			base := strings.TrimSuffix(name, ".ics")
			for n := 2; ; n++ {
				name = base + "-" + strconv.Itoa(n) + ".ics"
				if _, dup := taken[name]; !dup {
					break
				}
			}
			targets[i].Filename = name
		}
		taken[name] = struct{}{}
	}
	return targets
}

// FileEntry describes one generated file in the manifest.
type FileEntry struct {
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	Workshops int    `json:"workshops"`
	Events    int    `json:"events"`
}

// Manifest is written as index.json.
type Manifest struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Files       []FileEntry `json:"files"`
}

// Exporter renders targets into an output directory.
type Exporter struct {
	OutputDir string
	Calendar  config.CalendarConfig
	Timezone  string
}

// New builds an Exporter from the application config.
func New(cfg *config.Config) *Exporter {
	return &Exporter{
		OutputDir: cfg.Export.OutputDir,
		Calendar:  cfg.Calendar,
		Timezone:  cfg.Timezone,
	}
}

// Render produces the document for one target without writing it.
func (e *Exporter) Render(ds *model.Dataset, t Target, stamp time.Time) (string, FileEntry) {
	workshops := filter.Select(ds, t.Criteria)
	records := ics.NewBuilder(ds.Lookups, e.Calendar.UIDDomain).Records(ds, workshops)

	name := e.Calendar.Name
	if t.Title != "" {
		name += ": " + t.Title
	}
	gen := ics.NewGenerator(ics.Options{
		ProdID:   e.Calendar.ProdID,
		Name:     name,
		Desc:     e.Calendar.Description,
		Timezone: e.Timezone,
	})
	return gen.RenderDocument(records, stamp), FileEntry{
		Filename:  t.Filename,
		Title:     t.Title,
		Workshops: len(workshops),
		Events:    len(records),
	}
}

// Run writes every target and the manifest. Each document is verified
// before it replaces the previous file. Run stops early when ctx is done.
func (e *Exporter) Run(ctx context.Context, ds *model.Dataset, targets []Target, stamp time.Time) (Manifest, error) {
	m := Manifest{GeneratedAt: stamp, Files: make([]FileEntry, 0, len(targets))}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		body, entry := e.Render(ds, t, stamp)
		if err := ics.Verify([]byte(body)); err != nil {
			return m, fmt.Errorf("verify %s: %w", t.Filename, err)
		}
		path := filepath.Join(e.OutputDir, t.Filename)
		if err := config.WriteFileAtomic(path, []byte(body), 0o644); err != nil {
			return m, fmt.Errorf("write %s: %w", t.Filename, err)
		}
		appLog.Debug("export: file written", "file", t.Filename, "events", entry.Events)
		m.Files = append(m.Files, entry)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, err
	}
	if err := config.WriteFileAtomic(filepath.Join(e.OutputDir, ManifestName), data, 0o644); err != nil {
		return m, fmt.Errorf("write manifest: %w", err)
	}

	appLog.Info("export completed", "dir", e.OutputDir, "files", len(m.Files))
	return m, nil
}
