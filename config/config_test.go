package config

import (
	"os"
	"path/filepath"
	"testing"

	"lakebridge/model"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
table_name: orders
table_base_path: /data/orders
source_format: DELTA
target_table_formats: [ICEBERG, HUDI]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IncrementalMaxCommits != defaultIncrementalMaxCommits {
		t.Fatalf("expected default incremental_max_commits, got %d", cfg.IncrementalMaxCommits)
	}
	if cfg.IncrementalSyncEnabled == nil || !*cfg.IncrementalSyncEnabled {
		t.Fatalf("expected incremental_sync_enabled to default true")
	}
	if cfg.SyncTimeoutMs != defaultSyncTimeoutMs {
		t.Fatalf("expected default sync_timeout_ms, got %d", cfg.SyncTimeoutMs)
	}
}

func TestLoadConfig_EmptyTargetSetIsError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
table_name: orders
table_base_path: /data/orders
source_format: DELTA
target_table_formats: []
`)
	_, err := LoadConfig(path)
	if err == nil || !model.Is(err, model.ErrConfigError) {
		t.Fatalf("expected ErrConfigError, got %v", err)
	}
}

func TestLoadConfig_InfersSourceFormatFromMarker(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "_delta_log"), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := writeConfig(t, dir, `
table_name: orders
table_base_path: `+dir+`
target_table_formats: [ICEBERG]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SourceFormat != model.FormatDelta {
		t.Fatalf("expected inferred DELTA format, got %q", cfg.SourceFormat)
	}
}

func TestLoadConfig_AmbiguousSourceFormatIsError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
table_name: orders
table_base_path: /does/not/exist
target_table_formats: [ICEBERG]
`)
	_, err := LoadConfig(path)
	if err == nil || !model.Is(err, model.ErrConfigError) {
		t.Fatalf("expected ErrConfigError, got %v", err)
	}
}
