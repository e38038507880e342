package delta

import (
	"testing"

	"lakebridge/model"
)

func TestToCanonicalSchema_Primitives(t *testing.T) {
	fields := []StructField{
		{Name: "id", Type: FieldType{Primitive: "long"}, Nullable: false},
		{Name: "amount", Type: FieldType{Primitive: "decimal(10,2)"}, Nullable: true},
	}
	schema, err := ToCanonicalSchema(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Fields[0].Schema.Kind != model.KindLong {
		t.Errorf("expected LONG, got %s", schema.Fields[0].Schema.Kind)
	}
	dec := schema.Fields[1].Schema
	if dec.Kind != model.KindDecimal || dec.Metadata.DecimalPrecision != 10 || dec.Metadata.DecimalScale != 2 {
		t.Errorf("expected DECIMAL(10,2), got %+v", dec)
	}
}

func TestColumnMappingID(t *testing.T) {
	fields := []StructField{
		{Name: "id", Type: FieldType{Primitive: "long"}, Metadata: map[string]any{columnMappingIDProperty: float64(5)}},
	}
	schema, err := ToCanonicalSchema(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Fields[0].FieldID == nil || *schema.Fields[0].FieldID != 5 {
		t.Errorf("expected field id 5 from column mapping metadata, got %v", schema.Fields[0].FieldID)
	}
}

func TestSchema_Roundtrip(t *testing.T) {
	fid := int32(3)
	root := &model.Schema{Kind: model.KindRecord, Fields: []model.Field{
		{Name: "ts", FieldID: &fid, Schema: &model.Schema{Kind: model.KindTimestamp, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, Nullable: true},
	}}
	deltaFields, err := FromCanonicalSchema(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := ToCanonicalSchema(deltaFields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Fields[0].Schema.Kind != model.KindTimestamp {
		t.Errorf("expected TIMESTAMP after roundtrip, got %s", back.Fields[0].Schema.Kind)
	}
	if back.Fields[0].FieldID == nil || *back.Fields[0].FieldID != 3 {
		t.Errorf("expected field id 3 preserved through roundtrip, got %v", back.Fields[0].FieldID)
	}
}

func TestToCanonicalSchema_UnsupportedType(t *testing.T) {
	_, err := ToCanonicalSchema([]StructField{{Name: "x", Type: FieldType{Primitive: "void"}}})
	if err == nil {
		t.Fatal("expected error for unsupported primitive")
	}
	if !model.Is(err, model.ErrUnsupportedType) {
		t.Errorf("expected UnsupportedType, got %v", err)
	}
}
