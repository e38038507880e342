// Package source defines the per-format source adapter contract: reading a
// table's current snapshot and its commit history without mutating
// anything. Concrete adapters live in source/delta, source/iceberg and
// source/hudi; the sync orchestrator only depends on this package's
// interface.
package source

import (
	"context"

	"lakebridge/model"
)

// CommitPlan is the result of asking a source how far a checkpoint is
// behind: an ordered list of commits to apply, or a signal that the source
// can no longer serve them incrementally (e.g. the log was vacuumed past
// the checkpoint).
type CommitPlan struct {
	CommitsToProcess []model.VersionToken
	MustDoFullSync   bool
}

// Adapter is the capability set a source format module must implement. Per
// the canonical model's design note, this is a plain interface rather than
// a class hierarchy: per-format packages expose a constructor function, and
// the registry (see source/registry.go) maps format tags to constructors.
// Adapter instances are owned by the orchestrator for one sync round and
// are not safe for concurrent reuse across rounds.
type Adapter interface {
	GetTable(ctx context.Context, at model.VersionToken) (model.TableDescriptor, error)
	GetSchemaCatalog(ctx context.Context, at model.VersionToken) (map[model.SchemaVersion]*model.Schema, error)
	GetCurrentSnapshot(ctx context.Context) (model.Snapshot, error)
	GetCommitState(ctx context.Context, afterInstantMs int64, after *model.VersionToken) (CommitPlan, error)
	GetCommit(ctx context.Context, v model.VersionToken) (model.Commit, error)

	// Close releases any handles the adapter acquired lazily (filesystem
	// clients, catalog connections). Called once at round end.
	Close() error
}

// Factory constructs an Adapter for one table. basePath is the table's root
// directory in the configured filesystem; hadoopConf carries opaque
// filesystem credentials through unchanged.
type Factory func(basePath string, hadoopConf map[string]string) (Adapter, error)
