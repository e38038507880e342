package model

import "testing"

func int32p(v int32) *int32 { return &v }

func TestFieldByPath_RecordField(t *testing.T) {
	root := &Schema{Kind: KindRecord, Fields: []Field{
		{Name: "id", FieldID: int32p(1), Schema: &Schema{Kind: KindInt}},
		{Name: "name", FieldID: int32p(2), Schema: &Schema{Kind: KindString}},
	}}

	f, ok := FieldByPath(root, "name")
	if !ok {
		t.Fatal("expected to find field by path")
	}
	if f.Schema.Kind != KindString {
		t.Errorf("expected STRING, got %s", f.Schema.Kind)
	}
}

func TestFieldByPath_ArrayElement(t *testing.T) {
	arr := NewArraySchema(true, Field{Schema: &Schema{Kind: KindLong}})
	root := &Schema{Kind: KindRecord, Fields: []Field{
		{Name: "tags", FieldID: int32p(1), Schema: arr},
	}}

	f, ok := FieldByPath(root, "tags.element")
	if !ok {
		t.Fatal("expected to resolve array element path")
	}
	if f.Schema.Kind != KindLong {
		t.Errorf("expected LONG, got %s", f.Schema.Kind)
	}
}

func TestFieldByPath_MapKeyValue(t *testing.T) {
	m := NewMapSchema(
		Field{Schema: &Schema{Kind: KindString}},
		Field{Schema: &Schema{Kind: KindInt}},
	)
	root := &Schema{Kind: KindRecord, Fields: []Field{
		{Name: "m", FieldID: int32p(1), Schema: m},
	}}

	keyField, ok := FieldByPath(root, "m.key_value.key")
	if !ok {
		t.Fatal("expected to resolve map key path")
	}
	if keyField.Schema.Kind != KindString {
		t.Errorf("expected STRING key, got %s", keyField.Schema.Kind)
	}

	valueField, ok := FieldByPath(root, "m.key_value.value")
	if !ok {
		t.Fatal("expected to resolve map value path")
	}
	if valueField.Schema.Kind != KindInt {
		t.Errorf("expected INT value, got %s", valueField.Schema.Kind)
	}
}

func TestBuildFieldIndex(t *testing.T) {
	root := &Schema{Kind: KindRecord, Fields: []Field{
		{Name: "id", FieldID: int32p(1), Schema: &Schema{Kind: KindInt}},
		{Name: "nested", FieldID: int32p(2), Schema: &Schema{Kind: KindRecord, Fields: []Field{
			{Name: "inner", FieldID: int32p(3), Schema: &Schema{Kind: KindString}},
		}}},
	}}

	idx := BuildFieldIndex(root)
	if idx[1] != "id" {
		t.Errorf("expected id -> \"id\", got %q", idx[1])
	}
	if idx[3] != "nested.inner" {
		t.Errorf("expected id 3 -> \"nested.inner\", got %q", idx[3])
	}
}

func TestMapKeyAndValue_InvalidSchema(t *testing.T) {
	bad := &Schema{Kind: KindMap, Fields: []Field{{Name: "not_key_value"}}}
	if _, _, err := bad.MapKeyAndValue(); err == nil {
		t.Fatal("expected error for malformed map schema")
	} else if !Is(err, ErrInvalidSchema) {
		t.Errorf("expected InvalidSchema, got %v", err)
	}
}

func TestArrayElement_InvalidSchema(t *testing.T) {
	bad := &Schema{Kind: KindArray, Fields: []Field{{Name: "wrong"}}}
	if _, err := bad.ArrayElement(); err == nil {
		t.Fatal("expected error for malformed array schema")
	} else if !Is(err, ErrInvalidSchema) {
		t.Errorf("expected InvalidSchema, got %v", err)
	}
}
