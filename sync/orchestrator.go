// Package sync drives one synchronization round: read a source table's
// state once, then apply it to every configured target. One control loop:
// acquire resources, loop with a cooperative cancellation check, isolate
// per-target failures, and never leave a target half-applied.
package sync

import (
	"context"
	"log"

	"lakebridge/model"
	"lakebridge/source"
	"lakebridge/target"
)

// defaultIncrementalMaxCommits bounds how many pending commits an
// incremental sync will walk before falling back to a full resync; past
// this point replaying each commit individually costs more than rereading
// the source's current snapshot once.
const defaultIncrementalMaxCommits = 20

// TargetResult is the outcome of syncing one target within a round. Err is
// non-nil when that target's sync failed; a failure here never aborts the
// other targets in the same round.
type TargetResult struct {
	Format     model.SourceFormat
	Checkpoint model.SyncCheckpoint
	Err        error
}

// Round drives one synchronization pass against a fixed set of targets.
type Round struct {
	Source                source.Adapter
	Targets               map[model.SourceFormat]target.Adapter
	IncrementalMaxCommits int
	// IncrementalDisabled forces every target through a full snapshot sync,
	// the config.yaml incremental_sync_enabled: false switch.
	IncrementalDisabled bool

	snapshot *model.Snapshot
}

func (r *Round) maxCommits() int {
	if r.IncrementalMaxCommits > 0 {
		return r.IncrementalMaxCommits
	}
	return defaultIncrementalMaxCommits
}

// isSourceFailure reports whether err originated from the source adapter
// rather than from a target write. Source-side errors invalidate the whole
// round — every target reads the same source state, so a corrupt or
// unreadable source means no target can make progress, not just the one
// being synced when the error surfaced.
func isSourceFailure(err error) bool {
	switch kind, ok := model.KindOf(err); {
	case !ok:
		return false
	case kind == model.ErrSourceReadError || kind == model.ErrSourceVersionMissing:
		return true
	default:
		return false
	}
}

// Run executes one round: every configured target is attempted in turn,
// each isolated from the others' target-write failures. Run returns early,
// without attempting the remaining targets, in two cases: context
// cancellation, and a source-adapter failure — the source is read once per
// round and shared by every target, so a failure reading it is fatal to
// the round rather than to the one target that happened to hit it.
func (r *Round) Run(ctx context.Context) ([]TargetResult, error) {
	results := make([]TargetResult, 0, len(r.Targets))
	for format, adapter := range r.Targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Printf("sync: starting target %s", format)
		cp, err := r.syncOne(ctx, adapter)
		if err != nil && isSourceFailure(err) {
			log.Printf("sync: source failed while syncing target %s, aborting round: %v", format, err)
			return results, err
		}
		if err != nil {
			log.Printf("sync: target %s failed: %v", format, err)
		} else {
			log.Printf("sync: target %s caught up to source version %s", format, cp.LastSourceVersion)
		}
		results = append(results, TargetResult{Format: format, Checkpoint: cp, Err: err})
	}
	return results, nil
}

func (r *Round) syncOne(ctx context.Context, t target.Adapter) (model.SyncCheckpoint, error) {
	cp, err := t.ReadLastCheckpoint(ctx)
	if err != nil {
		return model.SyncCheckpoint{}, err
	}
	if r.IncrementalDisabled || cp == nil || !t.SupportsIncremental() {
		return r.fullSync(ctx, t)
	}

	plan, err := r.Source.GetCommitState(ctx, cp.LastSourceInstantMs, &cp.LastSourceVersion)
	if err != nil {
		return model.SyncCheckpoint{}, err
	}
	if plan.MustDoFullSync || len(plan.CommitsToProcess) > r.maxCommits() {
		return r.fullSync(ctx, t)
	}
	if len(plan.CommitsToProcess) == 0 {
		return *cp, nil
	}

	latest := *cp
	for _, v := range plan.CommitsToProcess {
		if err := ctx.Err(); err != nil {
			return latest, err
		}
		commit, err := r.Source.GetCommit(ctx, v)
		if err != nil {
			return latest, err
		}
		next, err := t.ApplyCommit(ctx, commit)
		if err != nil {
			return latest, err
		}
		latest = next
	}
	return latest, nil
}

// fullSync fetches the source's current snapshot at most once per round
// and reuses it across every target that needs a full resync.
func (r *Round) fullSync(ctx context.Context, t target.Adapter) (model.SyncCheckpoint, error) {
	if r.snapshot == nil {
		snap, err := r.Source.GetCurrentSnapshot(ctx)
		if err != nil {
			return model.SyncCheckpoint{}, err
		}
		r.snapshot = &snap
	}
	return t.ApplySnapshot(ctx, *r.snapshot)
}
