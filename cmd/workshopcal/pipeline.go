package main

import (
	"context"
	"sync"
	"time"

	"workshopcal/internal/config"
	"workshopcal/internal/dataset"
	"workshopcal/internal/export"
	appLog "workshopcal/internal/log"
	"workshopcal/internal/model"
)

// datasetLoader is satisfied by *dataset.Loader.
type datasetLoader interface {
	Load(ctx context.Context) (*model.Dataset, dataset.Report, error)
}

// pipeline loads the dataset and rewrites every calendar file. Runs are
// serialized.
type pipeline struct {
	loader   datasetLoader
	exporter *export.Exporter
	presets  []config.Preset
	loc      *time.Location
	now      func() time.Time

	// onLoad receives each freshly loaded dataset, if set.
	onLoad func(*model.Dataset)

	mu sync.Mutex
}

func (p *pipeline) run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ds, report, err := p.loader.Load(ctx)
	if err != nil {
		return err
	}
	if n := report.Rejected(); n > 0 {
		appLog.Warn("dataset records rejected", "count", n)
	}
	if p.onLoad != nil {
		p.onLoad(ds)
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	stamp := now().In(p.loc)

	targets := export.Targets(ds, p.presets)
	_, err = p.exporter.Run(ctx, ds, targets, stamp)
	return err
}
