package iceberg

import (
	"context"
	"testing"

	"lakebridge/model"
	"lakebridge/storage"
	targeticeberg "lakebridge/target/iceberg"
)

func testSchema() *model.Schema {
	id := int32(1)
	region := int32(2)
	return &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: &id, Schema: &model.Schema{Kind: model.KindInt}},
		{Name: "region", FieldID: &region, Schema: &model.Schema{Kind: model.KindString}},
	}}
}

func TestGetCurrentSnapshot_AfterApplySnapshot(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writer := targeticeberg.NewWriter(store, "/tmp/table")
	ctx := context.Background()
	schema := testSchema()

	snap := model.Snapshot{
		Table:         model.TableDescriptor{Name: "t", ReadSchema: schema},
		SourceVersion: model.VersionToken{Raw: "1", Ord: 1},
		Files: model.GroupFiles([]model.DataFile{
			{Path: "data/a.parquet", RecordCount: 10, FileSizeBytes: 100},
		}),
	}
	if _, err := writer.ApplySnapshot(ctx, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter := New(store, "")
	got, err := adapter.GetCurrentSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files := got.Files.AllFiles()
	if len(files) != 1 || files[0].Path != "data/a.parquet" {
		t.Fatalf("expected one file, got %+v", files)
	}
	if len(got.Table.ReadSchema.Fields) != 2 {
		t.Fatalf("expected schema roundtrip, got %+v", got.Table.ReadSchema)
	}
}

func TestGetCommit_AfterApplyCommit(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writer := targeticeberg.NewWriter(store, "/tmp/table")
	ctx := context.Background()
	schema := testSchema()

	snap := model.Snapshot{
		Table:         model.TableDescriptor{Name: "t", ReadSchema: schema},
		SourceVersion: model.VersionToken{Raw: "1", Ord: 1},
		Files:         model.GroupFiles(nil),
	}
	if _, err := writer.ApplySnapshot(ctx, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter := New(store, "")
	before, err := adapter.GetCurrentSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	commit := model.Commit{
		Version:     model.VersionToken{Raw: "2", Ord: 2},
		TimestampMs: 1000,
		FilesDiff:   model.NewDataFilesDiff([]model.DataFile{{Path: "data/b.parquet", RecordCount: 5}}, nil),
		TableAfter:  model.TableDescriptor{Name: "t", ReadSchema: schema},
	}
	if _, err := writer.ApplyCommit(ctx, commit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plan, err := adapter.GetCommitState(ctx, 0, &before.SourceVersion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.CommitsToProcess) != 1 {
		t.Fatalf("expected one pending commit, got %+v", plan.CommitsToProcess)
	}

	got, err := adapter.GetCommit(ctx, plan.CommitsToProcess[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.FilesDiff.Added) != 1 {
		t.Fatalf("expected one added file, got %+v", got.FilesDiff.Added)
	}
}

func TestGetCurrentSnapshot_PreservesPartitionValues(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writer := targeticeberg.NewWriter(store, "/tmp/table")
	ctx := context.Background()
	schema := testSchema()
	spec := model.PartitionSpec{{SourceFieldID: 2, Transform: model.TransformValue}}
	partitionField := spec[0]

	snap := model.Snapshot{
		Table:         model.TableDescriptor{Name: "t", ReadSchema: schema, PartitionSpec: spec},
		SourceVersion: model.VersionToken{Raw: "1", Ord: 1},
		Files: model.GroupFiles([]model.DataFile{
			{
				Path:            "data/region=us/a.parquet",
				RecordCount:     10,
				FileSizeBytes:   100,
				PartitionValues: map[model.PartitionField]model.Range{partitionField: model.ScalarRange("us")},
			},
			{
				Path:            "data/region=eu/b.parquet",
				RecordCount:     20,
				FileSizeBytes:   200,
				PartitionValues: map[model.PartitionField]model.Range{partitionField: model.ScalarRange("eu")},
			},
		}),
	}
	if _, err := writer.ApplySnapshot(ctx, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter := New(store, "")
	got, err := adapter.GetCurrentSnapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byPath := map[string]model.DataFile{}
	for _, f := range got.Files.AllFiles() {
		byPath[f.Path] = f
	}
	us, ok := byPath["data/region=us/a.parquet"]
	if !ok {
		t.Fatalf("missing file, got %+v", byPath)
	}
	if r, ok := us.PartitionValues[partitionField]; !ok || r.Min != "us" {
		t.Fatalf("expected partition value %q to survive the roundtrip, got %+v", "us", us.PartitionValues)
	}
	eu, ok := byPath["data/region=eu/b.parquet"]
	if !ok {
		t.Fatalf("missing file, got %+v", byPath)
	}
	if r, ok := eu.PartitionValues[partitionField]; !ok || r.Min != "eu" {
		t.Fatalf("expected partition value %q to survive the roundtrip, got %+v", "eu", eu.PartitionValues)
	}
}
