// Package config loads the YAML file describing one sync round: which
// source table to read, which target formats to keep synchronized, and
// the thresholds governing incremental-vs-snapshot sync.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lakebridge/model"
)

const (
	defaultIncrementalMaxCommits  = 20
	defaultIncrementalSyncEnabled = true
	defaultSyncTimeoutMs          = 600_000
)

// Config is the top-level shape of a lakebridge config.yaml.
type Config struct {
	TableName     string               `yaml:"table_name"`
	TableBasePath string               `yaml:"table_base_path"`
	SourceFormat  model.SourceFormat   `yaml:"source_format"`
	TargetFormats []model.SourceFormat `yaml:"target_table_formats"`
	HadoopConf    map[string]string    `yaml:"hadoop_conf"`

	IncrementalMaxCommits  int   `yaml:"incremental_max_commits"`
	IncrementalSyncEnabled *bool `yaml:"incremental_sync_enabled"`
	SyncTimeoutMs          int64 `yaml:"sync_timeout_ms"`

	// PreviewPort, when non-zero, starts a read-only Postgres-wire preview
	// server over every synced target once the round completes. Zero
	// (the default) leaves the preview server off.
	PreviewPort int `yaml:"preview_port"`
}

// LoadConfig reads and parses path, applies defaults and rejects
// configurations the sync engine cannot act on: an empty target set or an
// unresolvable source format are both configuration errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.Wrap(model.ErrConfigError, "reading config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, model.Wrap(model.ErrConfigError, "parsing config file", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IncrementalMaxCommits == 0 {
		c.IncrementalMaxCommits = defaultIncrementalMaxCommits
	}
	if c.IncrementalSyncEnabled == nil {
		enabled := defaultIncrementalSyncEnabled
		c.IncrementalSyncEnabled = &enabled
	}
	if c.SyncTimeoutMs == 0 {
		c.SyncTimeoutMs = defaultSyncTimeoutMs
	}
}

func (c *Config) validate() error {
	if c.TableName == "" {
		return model.New(model.ErrConfigError, "table_name is required")
	}
	if c.TableBasePath == "" {
		return model.New(model.ErrConfigError, "table_base_path is required")
	}
	if len(c.TargetFormats) == 0 {
		return model.New(model.ErrConfigError, "target_table_formats must name at least one target")
	}
	for _, f := range c.TargetFormats {
		if !isKnownFormat(f) {
			return model.Newf(model.ErrConfigError, "unrecognized target format %q", f)
		}
	}
	if c.SourceFormat == "" {
		inferred, ok := inferSourceFormat(c.TableBasePath)
		if !ok {
			return model.New(model.ErrConfigError, "source_format could not be inferred from table_base_path; set it explicitly")
		}
		c.SourceFormat = inferred
	} else if !isKnownFormat(c.SourceFormat) {
		return model.Newf(model.ErrConfigError, "unrecognized source format %q", c.SourceFormat)
	}
	if c.IncrementalMaxCommits < 1 {
		return model.New(model.ErrConfigError, "incremental_max_commits must be >= 1")
	}
	return nil
}

func isKnownFormat(f model.SourceFormat) bool {
	switch f {
	case model.FormatDelta, model.FormatIceberg, model.FormatHudi:
		return true
	default:
		return false
	}
}

// inferSourceFormat distinguishes the three formats by the marker files
// each one's writer always produces at the table root. It reports false
// if none or more than one marker is present.
func inferSourceFormat(basePath string) (model.SourceFormat, bool) {
	markers := map[model.SourceFormat]string{
		model.FormatDelta:   "_delta_log",
		model.FormatIceberg: "metadata",
		model.FormatHudi:    ".hoodie",
	}
	var found []model.SourceFormat
	for format, dir := range markers {
		if info, err := os.Stat(filepath.Join(basePath, dir)); err == nil && info.IsDir() {
			found = append(found, format)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}
