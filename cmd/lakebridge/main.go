// Command lakebridge runs one table-metadata sync round from a YAML
// config file, translating a source table's current state into every
// configured target format.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lakebridge/config"
	"lakebridge/model"
	"lakebridge/preview"
	"lakebridge/source"
	sourcedelta "lakebridge/source/delta"
	sourcehudi "lakebridge/source/hudi"
	sourceiceberg "lakebridge/source/iceberg"
	"lakebridge/sync"
	"lakebridge/target"
	targetdelta "lakebridge/target/delta"
	targethudi "lakebridge/target/hudi"
	targeticeberg "lakebridge/target/iceberg"
)

// Exit codes per the sync engine's external interface: 0 on full success,
// 1 on configuration error, 2 when at least one target failed, 3 on a
// source-side fatal error.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitTargetFailed = 2
	exitSourceFatal  = 3
)

func sourceRegistry() source.Registry {
	return source.Registry{
		model.FormatDelta:   sourcedelta.NewAdapter,
		model.FormatIceberg: sourceiceberg.NewAdapter,
		model.FormatHudi:    sourcehudi.NewAdapter,
	}
}

func targetRegistry() target.Registry {
	return target.Registry{
		model.FormatDelta:   targetdelta.NewAdapter,
		model.FormatIceberg: targeticeberg.NewAdapter,
		model.FormatHudi:    targethudi.NewAdapter,
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("configuration error: %v", err)
		return exitConfigError
	}

	srcAdapter, err := sourceRegistry().Adapter(cfg.SourceFormat, cfg.TableBasePath, cfg.HadoopConf)
	if err != nil {
		log.Printf("configuration error: %v", err)
		return exitConfigError
	}
	defer srcAdapter.Close()

	targets := make(map[model.SourceFormat]target.Adapter, len(cfg.TargetFormats))
	for _, format := range cfg.TargetFormats {
		adapter, err := targetRegistry().Adapter(format, cfg.TableBasePath, cfg.HadoopConf)
		if err != nil {
			log.Printf("configuration error: %v", err)
			return exitConfigError
		}
		defer adapter.Close()
		targets[format] = adapter
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Println("shutting down...")
			cancel()
		case <-rootCtx.Done():
		}
	}()

	syncCtx, syncCancel := context.WithTimeout(rootCtx, time.Duration(cfg.SyncTimeoutMs)*time.Millisecond)
	defer syncCancel()

	round := &sync.Round{
		Source:                srcAdapter,
		Targets:               targets,
		IncrementalMaxCommits: cfg.IncrementalMaxCommits,
		IncrementalDisabled:   cfg.IncrementalSyncEnabled != nil && !*cfg.IncrementalSyncEnabled,
	}

	results, err := round.Run(syncCtx)
	if err != nil {
		log.Printf("source error: %v", err)
		return exitSourceFatal
	}

	failed := false
	for _, r := range results {
		if r.Err != nil {
			log.Printf("target %s failed: %v", r.Format, r.Err)
			failed = true
		}
	}

	if cfg.PreviewPort != 0 {
		if err := servePreview(rootCtx, cfg); err != nil {
			log.Printf("preview server error: %v", err)
		}
	}

	if failed {
		return exitTargetFailed
	}
	return exitOK
}

// servePreview starts a read-only DuckDB-backed preview server over every
// configured target table and blocks until ctx is cancelled (SIGINT/
// SIGTERM). It runs after the sync round so the preview reflects the
// tables' just-synced state.
func servePreview(ctx context.Context, cfg *config.Config) error {
	tables := make([]preview.Table, 0, len(cfg.TargetFormats))
	for _, format := range cfg.TargetFormats {
		tables = append(tables, preview.Table{
			Name:     strings.ToLower(string(format)),
			Format:   format,
			BasePath: cfg.TableBasePath,
		})
	}
	srv, err := preview.NewServer(cfg.PreviewPort, tables)
	if err != nil {
		return err
	}
	defer srv.Close()
	log.Printf("preview server listening on port %d", cfg.PreviewPort)
	return srv.Start(ctx)
}
