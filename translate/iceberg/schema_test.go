package iceberg

import (
	"testing"

	"lakebridge/model"
)

func id32(v int32) *int32 { return &v }

func TestToIceberg_AssignsSequentialFieldIDs(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", Schema: &model.Schema{Kind: model.KindLong}},
		{Name: "name", Schema: &model.Schema{Kind: model.KindString}, Nullable: true},
	}}

	schema, err := ToIceberg(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(schema.Fields))
	}
	if schema.Fields[0].ID != 1 || schema.Fields[1].ID != 2 {
		t.Errorf("expected sequential field ids 1,2, got %d,%d", schema.Fields[0].ID, schema.Fields[1].ID)
	}
	if schema.Fields[0].Required != true || schema.Fields[1].Required != false {
		t.Errorf("required flags mismatched nullability")
	}
}

func TestToIceberg_PreservesExistingFieldIDs(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: id32(10), Schema: &model.Schema{Kind: model.KindLong}},
	}}
	schema, err := ToIceberg(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Fields[0].ID != 10 {
		t.Errorf("expected field id 10 preserved, got %d", schema.Fields[0].ID)
	}
}

func TestToIceberg_RecordKeyFieldIDs(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: id32(1), Schema: &model.Schema{Kind: model.KindLong}},
		{Name: "name", FieldID: id32(2), Schema: &model.Schema{Kind: model.KindString}},
	}}
	schema, err := ToIceberg(root, []string{"id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.IdentifierFieldIDs) != 1 || schema.IdentifierFieldIDs[0] != 1 {
		t.Errorf("expected identifier field ids [1], got %v", schema.IdentifierFieldIDs)
	}
}

func TestToIceberg_MissingRecordKeyPath(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: id32(1), Schema: &model.Schema{Kind: model.KindLong}},
	}}
	_, err := ToIceberg(root, []string{"missing"})
	if err == nil {
		t.Fatal("expected error for missing record key path")
	}
	if !model.Is(err, model.ErrSchemaMismatch) {
		t.Errorf("expected SchemaMismatch, got %v", err)
	}
}

func TestToIceberg_MapAndArray(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "tags", Schema: model.NewArraySchema(false, model.Field{Schema: &model.Schema{Kind: model.KindString}})},
		{Name: "props", Schema: model.NewMapSchema(
			model.Field{Schema: &model.Schema{Kind: model.KindString}},
			model.Field{Schema: &model.Schema{Kind: model.KindInt}},
		)},
	}}
	schema, err := ToIceberg(root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Fields[0].Type.Name != "list" {
		t.Errorf("expected list type, got %s", schema.Fields[0].Type.Name)
	}
	if schema.Fields[1].Type.Name != "map" {
		t.Errorf("expected map type, got %s", schema.Fields[1].Type.Name)
	}
}

func TestSchemaRoundtrip(t *testing.T) {
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "id", FieldID: id32(1), Schema: &model.Schema{Kind: model.KindLong}},
		{Name: "amount", FieldID: id32(2), Schema: &model.Schema{Kind: model.KindDecimal, Metadata: model.Metadata{DecimalPrecision: 10, DecimalScale: 2}}},
	}}
	iceSchema, err := ToIceberg(root, nil)
	if err != nil {
		t.Fatalf("unexpected error converting to iceberg: %v", err)
	}
	back, err := FromIceberg(iceSchema)
	if err != nil {
		t.Fatalf("unexpected error converting from iceberg: %v", err)
	}
	if len(back.Fields) != 2 {
		t.Fatalf("expected 2 fields after roundtrip, got %d", len(back.Fields))
	}
	if back.Fields[1].Schema.Metadata.DecimalPrecision != 10 || back.Fields[1].Schema.Metadata.DecimalScale != 2 {
		t.Errorf("decimal precision/scale lost in roundtrip: %+v", back.Fields[1].Schema.Metadata)
	}
}
