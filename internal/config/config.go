package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"workshopcal/internal/filter"
)

// DatasetConfig describes where the catalogue JSON comes from.
type DatasetConfig struct {
	// Source is a local path or an http(s) URL.
	Source string `yaml:"source" json:"source"`
	// CacheDir holds the HTTP cache for remote sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// CalendarConfig controls the VCALENDAR header and event UIDs.
type CalendarConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	ProdID      string `yaml:"prod_id" json:"prod_id"`
	// UIDDomain is appended to offering ids ("off-1@UIDDomain").
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`
}

// Preset is a named filter combination exported as its own file.
type Preset struct {
	Name            string `yaml:"name" json:"name"`
	filter.Criteria `yaml:",inline"`
}

// ExportConfig controls batch file generation.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir" json:"output_dir"`
	Presets   []Preset `yaml:"presets" json:"presets"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone offerings are scheduled in. Zone-less
	// dataset timestamps are read in it and it is advertised as
	// X-WR-TIMEZONE.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule ("*/30 * * * *") for reloading
	// the dataset and re-exporting files while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Dataset  DatasetConfig  `yaml:"dataset" json:"dataset"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Export   ExportConfig   `yaml:"export" json:"export"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPresets are the filter combinations published out of the box.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "online", Criteria: filter.Criteria{Formats: []string{"online"}}},
		{Name: "in-person", Criteria: filter.Criteria{Formats: []string{"in-person"}}},
		{Name: "hybrid", Criteria: filter.Criteria{Formats: []string{"hybrid"}}},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "America/Los_Angeles",
		RefreshCron: "*/30 * * * *",
		LogLevel:    "info",
		Dataset: DatasetConfig{
			Source:   "./data/workshops.json",
			CacheDir: "./var/dataset-cache",
		},
		Calendar: CalendarConfig{
			Name:        "Workshops",
			Description: "Upcoming workshop offerings",
			ProdID:      "-//Workshop Catalogue//Workshop Calendar 1.0//EN",
			UIDDomain:   "workshops.invalid",
		},
		Export: ExportConfig{
			OutputDir: "./public/calendars",
			Presets:   DefaultPresets(),
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}
	if c.Dataset.Source == "" {
		c.Dataset.Source = def.Dataset.Source
	}
	if c.Dataset.CacheDir == "" {
		c.Dataset.CacheDir = def.Dataset.CacheDir
	}
	if c.Calendar.Name == "" {
		c.Calendar.Name = def.Calendar.Name
	}
	if c.Calendar.Description == "" {
		c.Calendar.Description = def.Calendar.Description
	}
	if c.Calendar.ProdID == "" {
		c.Calendar.ProdID = def.Calendar.ProdID
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = def.Calendar.UIDDomain
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = def.Export.OutputDir
	}
	if c.Export.Presets == nil {
		c.Export.Presets = def.Export.Presets
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"WORKSHOPCAL_DATASET":    func(c *Config, v string) { c.Dataset.Source = v },
	"WORKSHOPCAL_LISTEN":     func(c *Config, v string) { c.Listen = v },
	"WORKSHOPCAL_OUTPUT_DIR": func(c *Config, v string) { c.Export.OutputDir = v },
	"WORKSHOPCAL_LOG_LEVEL":  func(c *Config, v string) { c.LogLevel = v },
	"WORKSHOPCAL_TIMEZONE":   func(c *Config, v string) { c.Timezone = v },
}

// ApplyEnv overrides fields from WORKSHOPCAL_* variables. A .env file in
// the working directory is read first if present; real environment values
// win over it.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for key, set := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			set(c, strings.TrimSpace(v))
		}
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
