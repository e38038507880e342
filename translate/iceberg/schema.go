// Package iceberg translates between the canonical schema model and
// Iceberg's table-metadata schema representation (the JSON shape written
// into metadata.json, not the in-memory types of any particular Iceberg
// client library).
package iceberg

import (
	"fmt"

	"lakebridge/model"
)

const (
	mapKeyFieldName      = "key"
	mapValueFieldName    = "value"
	listElementFieldName = "element"
)

// Type is an Iceberg primitive or nested type name as it appears in
// metadata.json ("int", "long", "decimal(p,s)", "fixed[n]", "struct",
// "list", "map").
type Type struct {
	Name string // "struct", "list", "map", or a primitive type name

	// Struct
	Fields []NestedField

	// List
	ElementID       int
	ElementRequired bool
	Element         *Type

	// Map
	KeyID         int
	ValueID       int
	ValueRequired bool
	Key           *Type
	Value         *Type
}

// NestedField is one field of an Iceberg struct, matching the shape Iceberg
// writes inside "schema"/"fields" in table metadata.
type NestedField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     Type   `json:"type"`
	Doc      string `json:"doc,omitempty"`
}

// Schema is an Iceberg schema: a struct type plus the set of field ids
// forming the table's identifier (record key) fields.
type Schema struct {
	Fields            []NestedField
	IdentifierFieldIDs []int
}

// fieldIDAllocator hands out sequential field ids for schema nodes that
// arrive from the canonical model without one already assigned, mirroring
// the source's level-by-level assignment: every field at a level is
// allocated an id before any of that level's children are visited.
type fieldIDAllocator struct{ next int }

func (a *fieldIDAllocator) allocate(existing *int32) int {
	if existing != nil {
		return int(*existing)
	}
	a.next++
	return a.next
}

// ToIceberg converts a canonical schema (expected to be RECORD-kinded at the
// root) plus its table's record-key paths into an Iceberg Schema.
func ToIceberg(root *model.Schema, recordKeyPaths []string) (Schema, error) {
	if root == nil || root.Kind != model.KindRecord {
		return Schema{}, model.New(model.ErrInvalidSchema, "iceberg schema requires a RECORD root")
	}
	alloc := &fieldIDAllocator{}
	fields, err := convertFields(root.Fields, alloc)
	if err != nil {
		return Schema{}, err
	}
	schema := Schema{Fields: fields}
	if len(recordKeyPaths) == 0 {
		return schema, nil
	}

	index := model.BuildFieldIndex(root)
	pathToID := make(map[string]int, len(index))
	for id, path := range index {
		pathToID[path] = int(id)
	}
	ids := make([]int, 0, len(recordKeyPaths))
	var missing []string
	for _, path := range recordKeyPaths {
		id, ok := pathToID[path]
		if !ok {
			missing = append(missing, path)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		return Schema{}, model.Newf(model.ErrSchemaMismatch, "missing field ids for record key field paths: %v", missing)
	}
	schema.IdentifierFieldIDs = ids
	return schema, nil
}

func convertFields(fields []model.Field, alloc *fieldIDAllocator) ([]NestedField, error) {
	ids := make([]int, len(fields))
	for i, f := range fields {
		ids[i] = alloc.allocate(f.FieldID)
	}
	out := make([]NestedField, len(fields))
	for i, f := range fields {
		t, err := toIcebergType(f.Schema, alloc)
		if err != nil {
			return nil, err
		}
		out[i] = NestedField{
			ID:       ids[i],
			Name:     f.Name,
			Required: !f.Nullable,
			Type:     t,
			Doc:      f.Schema.Comment,
		}
	}
	return out, nil
}

func toIcebergType(s *model.Schema, alloc *fieldIDAllocator) (Type, error) {
	switch s.Kind {
	case model.KindEnum, model.KindString:
		return Type{Name: "string"}, nil
	case model.KindInt:
		return Type{Name: "int"}, nil
	case model.KindLong:
		return Type{Name: "long"}, nil
	case model.KindBytes:
		return Type{Name: "binary"}, nil
	case model.KindFixed:
		return Type{Name: fmt.Sprintf("fixed[%d]", s.Metadata.FixedLength)}, nil
	case model.KindBool:
		return Type{Name: "boolean"}, nil
	case model.KindFloat:
		return Type{Name: "float"}, nil
	case model.KindDate:
		return Type{Name: "date"}, nil
	case model.KindTimestamp:
		return Type{Name: "timestamptz"}, nil
	case model.KindTimestampNTZ:
		return Type{Name: "timestamp"}, nil
	case model.KindDouble:
		return Type{Name: "double"}, nil
	case model.KindDecimal:
		return Type{Name: fmt.Sprintf("decimal(%d,%d)", s.Metadata.DecimalPrecision, s.Metadata.DecimalScale)}, nil
	case model.KindRecord:
		fields, err := convertFields(s.Fields, alloc)
		if err != nil {
			return Type{}, err
		}
		return Type{Name: "struct", Fields: fields}, nil
	case model.KindMap:
		key, value, err := s.MapKeyAndValue()
		if err != nil {
			return Type{}, model.Wrap(model.ErrInvalidSchema, "invalid map schema", err)
		}
		keyID := alloc.allocate(key.FieldID)
		valueID := alloc.allocate(value.FieldID)
		keyType, err := toIcebergType(key.Schema, alloc)
		if err != nil {
			return Type{}, err
		}
		valueType, err := toIcebergType(value.Schema, alloc)
		if err != nil {
			return Type{}, err
		}
		return Type{Name: "map", KeyID: keyID, ValueID: valueID, ValueRequired: !value.Nullable, Key: &keyType, Value: &valueType}, nil
	case model.KindArray:
		element, err := s.ArrayElement()
		if err != nil {
			return Type{}, model.Wrap(model.ErrInvalidSchema, "invalid array schema", err)
		}
		elementID := alloc.allocate(element.FieldID)
		elementType, err := toIcebergType(element.Schema, alloc)
		if err != nil {
			return Type{}, err
		}
		return Type{Name: "list", ElementID: elementID, ElementRequired: !element.Nullable, Element: &elementType}, nil
	default:
		return Type{}, model.Newf(model.ErrUnsupportedType, "unsupported type: %s", s.Kind)
	}
}

// FromIceberg converts an Iceberg Schema back into the canonical model.
func FromIceberg(schema Schema) (*model.Schema, error) {
	fields, err := fromIcebergFields(schema.Fields)
	if err != nil {
		return nil, err
	}
	return &model.Schema{Kind: model.KindRecord, Fields: fields}, nil
}

func fromIcebergFields(iceFields []NestedField) ([]model.Field, error) {
	out := make([]model.Field, len(iceFields))
	for i, f := range iceFields {
		s, err := fromIcebergType(f.Type)
		if err != nil {
			return nil, err
		}
		s.Comment = f.Doc
		id := int32(f.ID)
		out[i] = model.Field{
			Name:     f.Name,
			FieldID:  &id,
			Schema:   s,
			Nullable: !f.Required,
		}
	}
	return out, nil
}

func fromIcebergType(t Type) (*model.Schema, error) {
	switch t.Name {
	case "string":
		return &model.Schema{Kind: model.KindString}, nil
	case "int":
		return &model.Schema{Kind: model.KindInt}, nil
	case "long":
		return &model.Schema{Kind: model.KindLong}, nil
	case "binary":
		return &model.Schema{Kind: model.KindBytes}, nil
	case "boolean":
		return &model.Schema{Kind: model.KindBool}, nil
	case "float":
		return &model.Schema{Kind: model.KindFloat}, nil
	case "date":
		return &model.Schema{Kind: model.KindDate}, nil
	case "timestamptz":
		return &model.Schema{Kind: model.KindTimestamp, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, nil
	case "timestamp":
		return &model.Schema{Kind: model.KindTimestampNTZ, Metadata: model.Metadata{TimestampPrecision: model.TimestampMicros}}, nil
	case "double":
		return &model.Schema{Kind: model.KindDouble}, nil
	case "struct":
		fields, err := fromIcebergFields(t.Fields)
		if err != nil {
			return nil, err
		}
		return &model.Schema{Kind: model.KindRecord, Fields: fields}, nil
	case "uuid":
		return &model.Schema{Kind: model.KindFixed, Metadata: model.Metadata{FixedLength: 16}}, nil
	default:
		if precision, scale, ok := parseDecimal(t.Name); ok {
			return &model.Schema{Kind: model.KindDecimal, Metadata: model.Metadata{DecimalPrecision: precision, DecimalScale: scale}}, nil
		}
		if length, ok := parseFixed(t.Name); ok {
			return &model.Schema{Kind: model.KindFixed, Metadata: model.Metadata{FixedLength: length}}, nil
		}
		switch t.Name {
		case "map":
			keyType, err := fromIcebergType(*t.Key)
			if err != nil {
				return nil, err
			}
			valueType, err := fromIcebergType(*t.Value)
			if err != nil {
				return nil, err
			}
			keyID, valueID := int32(t.KeyID), int32(t.ValueID)
			return model.NewMapSchema(
				model.Field{FieldID: &keyID, Schema: keyType},
				model.Field{FieldID: &valueID, Schema: valueType, Nullable: !t.ValueRequired},
			), nil
		case "list":
			elementType, err := fromIcebergType(*t.Element)
			if err != nil {
				return nil, err
			}
			elementID := int32(t.ElementID)
			return model.NewArraySchema(!t.ElementRequired, model.Field{FieldID: &elementID, Schema: elementType}), nil
		}
		return nil, model.Newf(model.ErrUnsupportedType, "unsupported iceberg type: %s", t.Name)
	}
}

func parseDecimal(name string) (precision, scale int, ok bool) {
	if _, err := fmt.Sscanf(name, "decimal(%d,%d)", &precision, &scale); err == nil {
		return precision, scale, true
	}
	return 0, 0, false
}

func parseFixed(name string) (length int, ok bool) {
	if _, err := fmt.Sscanf(name, "fixed[%d]", &length); err == nil {
		return length, true
	}
	return 0, false
}
