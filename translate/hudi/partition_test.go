package hudi

import (
	"testing"

	"lakebridge/model"
)

func TestParsePartitionPath(t *testing.T) {
	got := ParsePartitionPath("year=2024/month=03")
	want := []KeyValue{{Name: "year", Value: "2024"}, {Name: "month", Value: "03"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d components, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("component %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParsePartitionPath_Empty(t *testing.T) {
	if got := ParsePartitionPath(""); got != nil {
		t.Errorf("expected nil for empty path, got %+v", got)
	}
}

func TestToCanonicalPartitionValues_NullToken(t *testing.T) {
	fid := int32(1)
	schema := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "region", FieldID: &fid, Schema: &model.Schema{Kind: model.KindString}},
	}}
	spec := model.PartitionSpec{{SourceFieldID: 1, Transform: model.TransformValue}}
	values, err := ToCanonicalPartitionValues(schema, spec, []KeyValue{{Name: "region", Value: NullPartitionToken}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pf := model.PartitionField{SourceFieldID: 1, Transform: model.TransformValue}
	r, ok := values[pf]
	if !ok {
		t.Fatal("expected partition value present")
	}
	if r.Max != nil {
		t.Errorf("expected nil value for null partition token, got %v", r.Max)
	}
}

func TestPartitionPath_Roundtrip(t *testing.T) {
	fid := int32(1)
	schema := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "region", FieldID: &fid, Schema: &model.Schema{Kind: model.KindString}},
	}}
	spec := model.PartitionSpec{{SourceFieldID: 1, Transform: model.TransformValue}}
	components := []KeyValue{{Name: "region", Value: "us"}}

	values, err := ToCanonicalPartitionValues(schema, spec, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := FormatPartitionPath(schema, spec, values)
	if err != nil {
		t.Fatalf("unexpected error formatting path: %v", err)
	}
	if path != "region=us" {
		t.Errorf("expected round-tripped path \"region=us\", got %q", path)
	}
}
