package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"workshopcal/internal/config"
	"workshopcal/internal/dataset"
	"workshopcal/internal/export"
	appLog "workshopcal/internal/log"
	"workshopcal/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	listen     string
	outDir     string
	once       bool
}

func main() {
	appLog.Info("workshopcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(); err != nil {
		appLog.Error("failed to read .env", err)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.outDir != "" {
		conf.Export.OutputDir = flags.outDir
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; using local", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"dataset", conf.Dataset.Source,
		"output_dir", conf.Export.OutputDir,
		"presets", len(conf.Export.Presets),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loader := dataset.NewLoader(dataset.Options{
		Source:   conf.Dataset.Source,
		CacheDir: conf.Dataset.CacheDir,
		Location: loc,
		Client:   &http.Client{Timeout: 30 * time.Second},
	})
	p := &pipeline{
		loader:   loader,
		exporter: export.New(conf),
		presets:  conf.Export.Presets,
		loc:      loc,
	}

	if flags.once {
		if err := p.run(ctx); err != nil {
			appLog.Error("export failed", err)
			os.Exit(1)
		}
		appLog.Info("workshopcal exiting")
		return
	}

	srv := web.NewServer(conf, loader)
	p.onLoad = srv.SetDataset

	if err := p.run(ctx); err != nil {
		// Keep serving; the HTTP layer loads lazily and the next tick retries.
		appLog.Error("initial export failed", err)
	}

	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		if err := p.run(ctx); err != nil {
			appLog.Error("scheduled export failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
	}

	<-sched.Stop().Done()
	appLog.Info("workshopcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.outDir, "out", "", "Export output directory (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the dataset, write all calendar files and exit")

	flag.Parse()

	return cfg
}
