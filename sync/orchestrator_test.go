package sync

import (
	"context"
	"testing"

	"lakebridge/model"
	"lakebridge/source"
	"lakebridge/target"
)

func testSchema() *model.Schema {
	id := int32(1)
	return &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: &id, Schema: &model.Schema{Kind: model.KindInt}},
	}}
}

// fakeSource is a minimal source.Adapter whose behavior each test controls
// directly, plus a counter so full-sync memoization can be asserted.
type fakeSource struct {
	snapshotCalls int
	snapshotErr   error
	commitStateErr error
	plan          source.CommitPlan
	commits       map[string]model.Commit
	commitErr     error
}

func (f *fakeSource) GetTable(ctx context.Context, at model.VersionToken) (model.TableDescriptor, error) {
	return model.TableDescriptor{Name: "t", ReadSchema: testSchema()}, nil
}

func (f *fakeSource) GetSchemaCatalog(ctx context.Context, at model.VersionToken) (map[model.SchemaVersion]*model.Schema, error) {
	return map[model.SchemaVersion]*model.Schema{model.NewSchemaVersion(1): testSchema()}, nil
}

func (f *fakeSource) GetCurrentSnapshot(ctx context.Context) (model.Snapshot, error) {
	f.snapshotCalls++
	if f.snapshotErr != nil {
		return model.Snapshot{}, f.snapshotErr
	}
	return model.Snapshot{
		Table:         model.TableDescriptor{Name: "t", ReadSchema: testSchema()},
		SourceVersion: model.VersionToken{Raw: "1", Ord: 1},
		Files:         model.GroupFiles(nil),
	}, nil
}

func (f *fakeSource) GetCommitState(ctx context.Context, afterInstantMs int64, after *model.VersionToken) (source.CommitPlan, error) {
	if f.commitStateErr != nil {
		return source.CommitPlan{}, f.commitStateErr
	}
	return f.plan, nil
}

func (f *fakeSource) GetCommit(ctx context.Context, v model.VersionToken) (model.Commit, error) {
	if f.commitErr != nil {
		return model.Commit{}, f.commitErr
	}
	return f.commits[v.Raw], nil
}

func (f *fakeSource) Close() error { return nil }

// fakeTarget is a minimal target.Adapter whose checkpoint/error behavior
// each test controls directly.
type fakeTarget struct {
	checkpoint       *model.SyncCheckpoint
	incremental      bool
	applySnapshotErr error
	applyCommitErr   error
	snapshotCalls    int
	commitCalls      int
}

func (f *fakeTarget) ReadLastCheckpoint(ctx context.Context) (*model.SyncCheckpoint, error) {
	return f.checkpoint, nil
}

func (f *fakeTarget) ApplySnapshot(ctx context.Context, snap model.Snapshot) (model.SyncCheckpoint, error) {
	f.snapshotCalls++
	if f.applySnapshotErr != nil {
		return model.SyncCheckpoint{}, f.applySnapshotErr
	}
	return model.SyncCheckpoint{LastSourceVersion: snap.SourceVersion}, nil
}

func (f *fakeTarget) ApplyCommit(ctx context.Context, commit model.Commit) (model.SyncCheckpoint, error) {
	f.commitCalls++
	if f.applyCommitErr != nil {
		return model.SyncCheckpoint{}, f.applyCommitErr
	}
	return model.SyncCheckpoint{LastSourceVersion: commit.Version}, nil
}

func (f *fakeTarget) SupportsIncremental() bool { return f.incremental }

func (f *fakeTarget) Close() error { return nil }

func TestRound_FullSyncMemoizedAcrossTargets(t *testing.T) {
	src := &fakeSource{}
	delta := &fakeTarget{}
	iceberg := &fakeTarget{}
	round := &Round{
		Source: src,
		Targets: map[model.SourceFormat]target.Adapter{
			model.FormatDelta:   delta,
			model.FormatIceberg: iceberg,
		},
	}
	results, err := round.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("target %s failed: %v", r.Format, r.Err)
		}
	}
	if src.snapshotCalls != 1 {
		t.Fatalf("expected GetCurrentSnapshot to be called once and memoized across targets, got %d calls", src.snapshotCalls)
	}
	if delta.snapshotCalls != 1 || iceberg.snapshotCalls != 1 {
		t.Fatalf("expected both targets to receive a full sync")
	}
}

func TestRound_SourceFailureAbortsRoundInsteadOfPerTarget(t *testing.T) {
	src := &fakeSource{snapshotErr: model.New(model.ErrSourceReadError, "corrupt log")}
	delta := &fakeTarget{}
	iceberg := &fakeTarget{}
	round := &Round{
		Source: src,
		Targets: map[model.SourceFormat]target.Adapter{
			model.FormatDelta:   delta,
			model.FormatIceberg: iceberg,
		},
	}
	results, err := round.Run(context.Background())
	if err == nil || !model.Is(err, model.ErrSourceReadError) {
		t.Fatalf("expected Run to return the source error directly, got %v (results: %+v)", err, results)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("a source failure must not be reported as a per-target failure, got target result %+v", r)
		}
	}
}

func TestRound_TargetWriteFailureIsolatedFromOtherTargets(t *testing.T) {
	src := &fakeSource{}
	failing := &fakeTarget{applySnapshotErr: model.New(model.ErrTargetWriteError, "disk full")}
	healthy := &fakeTarget{}
	round := &Round{
		Source: src,
		Targets: map[model.SourceFormat]target.Adapter{
			model.FormatDelta:   failing,
			model.FormatIceberg: healthy,
		},
	}
	results, err := round.Run(context.Background())
	if err != nil {
		t.Fatalf("a target write failure must not abort the round, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both targets to be attempted, got %d results", len(results))
	}
	var sawFailure, sawSuccess bool
	for _, r := range results {
		if r.Format == model.FormatDelta {
			if r.Err == nil || !model.Is(r.Err, model.ErrTargetWriteError) {
				t.Fatalf("expected delta target to report its write failure, got %v", r.Err)
			}
			sawFailure = true
		}
		if r.Format == model.FormatIceberg {
			if r.Err != nil {
				t.Fatalf("expected iceberg target to succeed, got %v", r.Err)
			}
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatalf("expected one failing and one succeeding target result, got %+v", results)
	}
}

func TestRound_IncrementalCommitWalk(t *testing.T) {
	cp := &model.SyncCheckpoint{LastSourceVersion: model.VersionToken{Raw: "1", Ord: 1}}
	src := &fakeSource{
		plan: source.CommitPlan{CommitsToProcess: []model.VersionToken{{Raw: "2", Ord: 2}}},
		commits: map[string]model.Commit{
			"2": {Version: model.VersionToken{Raw: "2", Ord: 2}, TableAfter: model.TableDescriptor{ReadSchema: testSchema()}},
		},
	}
	tgt := &fakeTarget{checkpoint: cp, incremental: true}
	round := &Round{
		Source:  src,
		Targets: map[model.SourceFormat]target.Adapter{model.FormatDelta: tgt},
	}
	results, err := round.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.commitCalls != 1 {
		t.Fatalf("expected one commit to be applied, got %d", tgt.commitCalls)
	}
	if tgt.snapshotCalls != 0 {
		t.Fatalf("expected no full sync when an incremental plan is available")
	}
	if results[0].Checkpoint.LastSourceVersion.Raw != "2" {
		t.Fatalf("expected checkpoint to advance to version 2, got %+v", results[0].Checkpoint)
	}
}
